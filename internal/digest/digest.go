// Package digest computes content fingerprints for source documents.
// Hashes are used for idempotency of analysis upserts, so they must be
// cryptographically collision-resistant, not just fast.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Bytes returns the hex-encoded SHA-256 digest of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// String returns the hex-encoded SHA-256 digest of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// File returns the hex-encoded SHA-256 digest of the file at path along
// with its size in bytes.
func File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, eris.Wrapf(err, "digest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, eris.Wrapf(err, "digest: read %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Combine returns a single digest over a list of document digests, joined
// with "|" in the order given. The result depends on document order: the
// combined hash is computed over documents in enumeration order, not a
// canonicalized set. An empty list hashes to the digest of the empty string.
func Combine(hashes []string) string {
	return String(strings.Join(hashes, "|"))
}
