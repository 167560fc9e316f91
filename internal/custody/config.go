package custody

import (
	"fmt"
	"strings"

	"github.com/animus-labs/custody/internal/platform/digest"
	"github.com/animus-labs/custody/internal/platform/env"
)

// Config holds the process-wide signing material. It is loaded once at
// start-up and passed by value; nothing mutates it afterwards.
type Config struct {
	HashAlgorithm string
	MACAlgorithm  string
	Secret        []byte
}

// ConfigurationError reports that the hashing algorithm or the signing
// secret is unavailable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("custody configuration: %s: %s", e.Field, e.Reason)
}

func ConfigFromEnv() (Config, error) {
	hashAlgorithm := digest.Normalize(env.String("CUSTODY_HASH_ALGORITHM", digest.DefaultAlgorithm))
	cfg := Config{
		HashAlgorithm: hashAlgorithm,
		MACAlgorithm:  digest.Normalize(env.String("CUSTODY_MAC_ALGORITHM", hashAlgorithm)),
		Secret:        []byte(env.String("CUSTODY_SIGNING_SECRET", "")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !digest.Supported(c.hashAlgorithm()) {
		return &ConfigurationError{Field: "CUSTODY_HASH_ALGORITHM", Reason: fmt.Sprintf("unsupported algorithm %q", c.HashAlgorithm)}
	}
	if !digest.Supported(c.macAlgorithm()) {
		return &ConfigurationError{Field: "CUSTODY_MAC_ALGORITHM", Reason: fmt.Sprintf("unsupported algorithm %q", c.MACAlgorithm)}
	}
	if len(strings.TrimSpace(string(c.Secret))) == 0 {
		return &ConfigurationError{Field: "CUSTODY_SIGNING_SECRET", Reason: "is required"}
	}
	return nil
}

func (c Config) hashAlgorithm() string {
	return digest.Normalize(c.HashAlgorithm)
}

// macAlgorithm falls back to the hash family when no MAC algorithm is set.
func (c Config) macAlgorithm() string {
	if strings.TrimSpace(c.MACAlgorithm) == "" {
		return c.hashAlgorithm()
	}
	return digest.Normalize(c.MACAlgorithm)
}
