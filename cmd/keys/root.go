package keys

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/feval/cmd/util"
	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// KeyCommands represents the key command group
	KeyCommands = &cobra.Command{
		Use:   "keys",
		Short: "Manage the RSA key pair of the handshake",
	}

	genCmd = &cobra.Command{
		Use:   "gen [directory]",
		Short: "Generate a new key pair",
		Long: `Generate a new RSA key pair and write it to the directory (default: current directory).

The server loads the private key with --private-key, clients load the public key with --public-key.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: setupGen,
		RunE:    runGen,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	KeyCommands.AddCommand(genCmd)

	key := "bits"
	genCmd.Flags().Int(key, 1024, util.WrapString("Size of the modulus in bits"))
	key = "format"
	genCmd.Flags().String(key, "xml", util.WrapString("Output format (xml for <RSAKeyValue> documents, pem for PKCS#1 blocks)"))
	key = "name"
	genCmd.Flags().String(key, "feval", util.WrapString("Base name of the key files"))
	key = "force"
	genCmd.Flags().Bool(key, false, util.WrapString("Overwrite existing key files"))
}

// setupGen binds the gen flags to viper
func setupGen(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

func runGen(_ *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	var marshalPrivate, marshalPublic func() []byte
	var ext string

	key, err := crypto.GenerateKeyPair(viper.GetInt("bits"))
	if err != nil {
		return err
	}

	switch format := viper.GetString("format"); format {
	case "xml":
		ext = ".xml"
		marshalPrivate = func() []byte { return crypto.MarshalXMLPrivateKey(key) }
		marshalPublic = func() []byte { return crypto.MarshalXMLPublicKey(&key.PublicKey) }
	case "pem":
		ext = ".pem"
		marshalPrivate = func() []byte { return crypto.MarshalPEMPrivateKey(key) }
		marshalPublic = func() []byte { return crypto.MarshalPEMPublicKey(&key.PublicKey) }
	default:
		return fmt.Errorf("invalid format %s (expected one of: xml, pem)", format)
	}

	name := viper.GetString("name")
	privatePath := filepath.Join(dir, name+ext)
	publicPath := filepath.Join(dir, name+".pub"+ext)

	if !viper.GetBool("force") {
		for _, p := range []string{privatePath, publicPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", p)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(privatePath, marshalPrivate(), 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(publicPath, marshalPublic(), 0o644); err != nil {
		return err
	}

	pterm.Success.Printfln("private key written to %s", privatePath)
	pterm.Success.Printfln("public key written to %s", publicPath)
	return nil
}
