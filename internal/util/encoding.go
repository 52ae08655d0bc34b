package util

import (
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD so that visually identical passwords typed on
// different platforms derive the same key.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// NormalizeBytes is the []byte variant of Normalize.
func NormalizeBytes(b []byte) []byte {
	return norm.NFKD.Bytes(b)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// B64Encode uses unpadded standard base64, the encoding of PHC strings.
func B64Encode(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func B64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.Strict().DecodeString(s)
}
