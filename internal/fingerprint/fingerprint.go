// Package fingerprint computes content hashes and page-attributed passage
// records from source documents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrEmptySource indicates a source that yields no extractable text.
var ErrEmptySource = errors.New("no extractable text in source")

// Hash computes the hex-encoded SHA-256 digest of the full byte stream.
//
// The digest is order-sensitive and independent of file name or path, so two
// byte-identical files always produce the same hash. Used for duplicate
// detection by the governance manifest.
func Hash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing source: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
