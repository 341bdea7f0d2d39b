package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Hasher produces a deterministic one-way digest of a PIN.
// Digests are fixed-length lower-case hex; equality is the only operation
// defined on them.
type Hasher interface {
	Hash(secret []byte) string
	Verify(secret []byte, digest string) bool
	Name() string
}

// SHA256Hasher digests secrets with SHA-256.
type SHA256Hasher struct{}

// Hash returns the hex SHA-256 digest of secret.
func (SHA256Hasher) Hash(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether secret hashes to digest.
func (h SHA256Hasher) Verify(secret []byte, digest string) bool {
	return equalDigest(h.Hash(secret), digest)
}

// Name returns "sha256".
func (SHA256Hasher) Name() string { return "sha256" }

// SHA3Hasher digests secrets with SHA3-256.
type SHA3Hasher struct{}

// Hash returns the hex SHA3-256 digest of secret.
func (SHA3Hasher) Hash(secret []byte) string {
	sum := sha3.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether secret hashes to digest.
func (h SHA3Hasher) Verify(secret []byte, digest string) bool {
	return equalDigest(h.Hash(secret), digest)
}

// Name returns "sha3-256".
func (SHA3Hasher) Name() string { return "sha3-256" }

// NewHasher returns the hasher registered under name.
// An empty name selects SHA-256.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256", "sha-256":
		return SHA256Hasher{}, nil
	case "sha3", "sha3-256":
		return SHA3Hasher{}, nil
	default:
		return nil, fmt.Errorf("auth: unknown hasher %q", name)
	}
}

// HashString is a convenience for string secrets.
func HashString(h Hasher, secret string) string {
	return h.Hash([]byte(secret))
}

// equalDigest compares in constant time so timing does not reveal prefix matches.
func equalDigest(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
