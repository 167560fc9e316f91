// Package digest wraps the hash and HMAC primitives used for evidence
// integrity. Every function is pure; algorithms are selected by name.
package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

const (
	SHA256 = "sha256"
	SHA384 = "sha384"
	SHA512 = "sha512"

	DefaultAlgorithm = SHA256
)

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

var constructors = map[string]func() hash.Hash{
	SHA256: sha256.New,
	SHA384: sha512.New384,
	SHA512: sha512.New,
}

// Normalize lower-cases an algorithm name and resolves the empty string to
// DefaultAlgorithm.
func Normalize(algorithm string) string {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		return DefaultAlgorithm
	}
	return algorithm
}

// Supported reports whether algorithm names a known hash family.
func Supported(algorithm string) bool {
	_, ok := constructors[Normalize(algorithm)]
	return ok
}

// NewHasher returns a streaming hash for algorithm.
func NewHasher(algorithm string) (hash.Hash, error) {
	newFn, ok := constructors[Normalize(algorithm)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return newFn(), nil
}

// Sum returns the lower-case hex digest of data.
func Sum(data []byte, algorithm string) (string, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MAC returns the lower-case hex HMAC of message keyed with secret.
func MAC(message []byte, secret []byte, algorithm string) (string, error) {
	newFn, ok := constructors[Normalize(algorithm)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	if len(secret) == 0 {
		return "", errors.New("mac secret is required")
	}
	mac := hmac.New(newFn, secret)
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Equal compares two hex strings in constant time.
func Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
