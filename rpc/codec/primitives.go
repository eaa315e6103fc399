package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/pierrec/lz4/v4"
)

// Checksum32 returns the CRC-32 (IEEE) of b
func Checksum32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// Compress appends the 4-byte big-endian length of src and its LZ4 block to
// dst. It reports false and leaves dst unchanged if LZ4 does not make src
// smaller.
func Compress(dst, src []byte) ([]byte, bool) {
	start := len(dst)
	bound := lz4.CompressBlockBound(len(src))
	dst = grow(dst, 4+bound)

	binary.BigEndian.PutUint32(dst[start:], uint32(len(src)))
	n, err := lz4.CompressBlock(src, dst[start+4:], nil)
	if err != nil || n == 0 || 4+n >= len(src) {
		return dst[:start], false
	}
	return dst[:start+4+n], true
}

// Decompress appends the payload of a body produced by Compress to dst.
// Payloads declaring more than limit bytes are rejected.
func Decompress(dst, src []byte, limit int) ([]byte, error) {
	if len(src) < 4 {
		return dst, fmt.Errorf("%w: compressed body without length", ErrMalformed)
	}
	size := int(binary.BigEndian.Uint32(src))
	if size > limit {
		return dst, fmt.Errorf("%w: compressed payload of %d bytes exceeds %d", ErrMalformed, size, limit)
	}

	start := len(dst)
	dst = grow(dst, size)
	n, err := lz4.UncompressBlock(src[4:], dst[start:])
	if err != nil {
		return dst[:start], fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n != size {
		return dst[:start], fmt.Errorf("%w: decompressed %d bytes, expected %d", ErrMalformed, n, size)
	}
	return dst, nil
}

// grow extends dst by n bytes and returns the extended slice
func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) < n {
		grown := make([]byte, len(dst), len(dst)+n)
		copy(grown, dst)
		dst = grown
	}
	return dst[:len(dst)+n]
}
