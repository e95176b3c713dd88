// Package hash provides content-addressable SHA-256 digests for DeltaGlider.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HexLength is the length of a hex-encoded SHA-256 digest.
const HexLength = 64

// Bytes returns the hex-encoded SHA-256 digest of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Reader consumes r to EOF and returns the hex-encoded SHA-256 digest
// together with the number of bytes read.
func Reader(r io.Reader) (string, int64, error) {
	hasher := sha256.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// File returns the hex-encoded SHA-256 digest of the file at path.
func File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Reader(f)
}

// Valid reports whether s looks like a hex-encoded SHA-256 digest.
func Valid(s string) bool {
	if len(s) != HexLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
