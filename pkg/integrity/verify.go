package integrity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Sum returns the hex SHA-256 digest of data
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Encode returns the digest of data in catalog encoding (base64 of raw bytes)
func Encode(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ExpectedHex converts a catalog digest to hex
func ExpectedHex(expectedB64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(expectedB64))
	if err != nil {
		return "", fmt.Errorf("decode digest: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Verify reports whether data matches the catalog digest expectedB64
func Verify(data []byte, expectedB64 string) bool {
	expected, err := ExpectedHex(expectedB64)
	if err != nil || expected == "" {
		return false
	}
	return strings.EqualFold(Sum(data), expected)
}

// VerifyFile is Verify for a file on disk. Only read failures are errors.
func VerifyFile(path, expectedB64 string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return Verify(data, expectedB64), nil
}
