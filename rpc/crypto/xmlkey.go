package crypto

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// rsaKeyValue is the XML key format used by .NET style peers
type rsaKeyValue struct {
	XMLName  xml.Name `xml:"RSAKeyValue"`
	Modulus  string   `xml:"Modulus"`
	Exponent string   `xml:"Exponent"`
	P        string   `xml:"P,omitempty"`
	Q        string   `xml:"Q,omitempty"`
	DP       string   `xml:"DP,omitempty"`
	DQ       string   `xml:"DQ,omitempty"`
	InverseQ string   `xml:"InverseQ,omitempty"`
	D        string   `xml:"D,omitempty"`
}

// ParseXMLPublicKey reads the Modulus and Exponent of an <RSAKeyValue> document
func ParseXMLPublicKey(data []byte) (*rsa.PublicKey, error) {
	var kv rsaKeyValue
	if err := xml.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("crypto: parse xml key: %w", err)
	}
	return kv.publicKey()
}

// ParseXMLPrivateKey reads a full <RSAKeyValue> document including the
// private parameters and validates the result
func ParseXMLPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	var kv rsaKeyValue
	if err := xml.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("crypto: parse xml key: %w", err)
	}

	pub, err := kv.publicKey()
	if err != nil {
		return nil, err
	}
	if kv.D == "" || kv.P == "" || kv.Q == "" {
		return nil, fmt.Errorf("crypto: xml key has no private part")
	}

	var d, p, q *big.Int
	for _, f := range []struct {
		name string
		val  string
		dst  **big.Int
	}{{"D", kv.D, &d}, {"P", kv.P, &p}, {"Q", kv.Q, &q}} {
		if *f.dst, err = decodeInt(f.val); err != nil {
			return nil, fmt.Errorf("crypto: xml key field %s: %w", f.name, err)
		}
	}

	key := &rsa.PrivateKey{PublicKey: *pub, D: d, Primes: []*big.Int{p, q}}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("crypto: invalid xml key: %w", err)
	}
	key.Precompute()
	return key, nil
}

// MarshalXMLPublicKey encodes key as an <RSAKeyValue> document without private parameters
func MarshalXMLPublicKey(key *rsa.PublicKey) []byte {
	out, _ := xml.Marshal(rsaKeyValue{
		Modulus:  encodeInt(key.N, 0),
		Exponent: encodeInt(big.NewInt(int64(key.E)), 0),
	})
	return out
}

// MarshalXMLPrivateKey encodes key as a full <RSAKeyValue> document. Fields are
// padded to the fixed widths .NET peers expect.
func MarshalXMLPrivateKey(key *rsa.PrivateKey) []byte {
	key.Precompute()
	size := (key.N.BitLen() + 7) / 8
	half := (size + 1) / 2

	out, _ := xml.Marshal(rsaKeyValue{
		Modulus:  encodeInt(key.N, size),
		Exponent: encodeInt(big.NewInt(int64(key.E)), 0),
		P:        encodeInt(key.Primes[0], half),
		Q:        encodeInt(key.Primes[1], half),
		DP:       encodeInt(key.Precomputed.Dp, half),
		DQ:       encodeInt(key.Precomputed.Dq, half),
		InverseQ: encodeInt(key.Precomputed.Qinv, half),
		D:        encodeInt(key.D, size),
	})
	return out
}

func (kv *rsaKeyValue) publicKey() (*rsa.PublicKey, error) {
	n, err := decodeInt(kv.Modulus)
	if err != nil {
		return nil, fmt.Errorf("crypto: xml key field Modulus: %w", err)
	}
	e, err := decodeInt(kv.Exponent)
	if err != nil {
		return nil, fmt.Errorf("crypto: xml key field Exponent: %w", err)
	}
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("crypto: xml key exponent out of range")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func decodeInt(s string) (*big.Int, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func encodeInt(v *big.Int, width int) string {
	if width > 0 && (v.BitLen()+7)/8 <= width {
		return base64.StdEncoding.EncodeToString(v.FillBytes(make([]byte, width)))
	}
	return base64.StdEncoding.EncodeToString(v.Bytes())
}

// --------------------------------------------------------------------------
// Built-in key pair
// --------------------------------------------------------------------------

// DefaultKeyXML is the 1024 bit key pair used when no key file is configured.
// It ships with the source, deployments should configure their own pair.
const DefaultKeyXML = "<RSAKeyValue>" +
	"<Modulus>3xzU8e+jSKtePBcKoZjqfAlU3OAYmJhaCrm3WRmibuiGXNOIW/QnsFu/2wCSii556fT/kNcvcCKu8TEZ9MbVdOJ0B+4SpLcy1akLvu5qEPtZvOftei1lxiPYbjg0l5Akos7t5gpF6uxflIN18kBcE2QPLZ/o7JuLwYvgH7lHyNE=</Modulus>" +
	"<Exponent>AQAB</Exponent>" +
	"<P>/nGIgM2rMV5RBCGSiQLndFRImAHlqLlcg1LCtc96X02flUwMo8DPHLLsTyc5Bl4iYl9nbliei+k06esPA1LkXw==</P>" +
	"<Q>4Ho7wzOrPLbcPZzQgoEzemtXGuWs70ye1M5Ef0C2WmyhvtAkDo3HVifP2FKjzu+sO8msfueGBqwZWNi/hVLgzw==</Q>" +
	"<DP>DVAZaUvZijK6IHI1PY/2VkLWrYVj48kXCxP4dhTN/VCNaf1Zp/O9om3GKXoO5MNmHymIuuBOI1nnV9nhpjXfFw==</DP>" +
	"<DQ>cabRbTJSx0mZ1oP3uatqgdeo4VBZr0quu/W3DmqYKM4JUk+VgdzciM1dWRv2HcaRADBKanIUFHq71pTe2sSsVw==</DQ>" +
	"<InverseQ>V7fK2dLpnBlpKADfpwO/wYSpG9eMgS27ExkoAg0JZa1gBa+bCJifk3t6XpAkv8B/CK2gHJcz1fk3qKNwGr4MoQ==</InverseQ>" +
	"<D>zKvOTQLgb1GFaOpaPlPhB1goGVcaOSHJt/0WTQ5PDB8S4yTJ+lDH9+iy31xvEYQBIrY1m9FLGzs18NxySzH7rT6YSjpBFefM5Seet6Q2ALkex5xUhlVpQsgOvtkLE6uuey4IIqtHoJ65VyFK5vsGY+CHbRuP6bEPJEL1TyWl+mE=</D>" +
	"</RSAKeyValue>"

var defaultKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return ParseXMLPrivateKey([]byte(DefaultKeyXML))
})

// DefaultPrivateKey returns the parsed built-in key pair
func DefaultPrivateKey() (*rsa.PrivateKey, error) {
	return defaultKey()
}
