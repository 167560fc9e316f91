package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	ledger "github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/digest"
	"github.com/animus-labs/custody/internal/platform/env"
)

type fileConfig struct {
	HashAlgorithm     string `toml:"hash_algorithm"`
	MACAlgorithm      string `toml:"mac_algorithm"`
	SigningSecretFile string `toml:"signing_secret_file"`
}

// loadLedgerConfig reads CUSTODY_* from the environment, or from a TOML
// file when path is set. A relative signing_secret_file resolves against
// the config file's directory; without it the secret still comes from
// CUSTODY_SIGNING_SECRET.
func loadLedgerConfig(path string) (ledger.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ledger.ConfigFromEnv()
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ledger.Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	cfg := ledger.Config{
		HashAlgorithm: digest.DefaultAlgorithm,
		Secret:        []byte(env.String("CUSTODY_SIGNING_SECRET", "")),
	}
	if meta.IsDefined("hash_algorithm") {
		cfg.HashAlgorithm = digest.Normalize(raw.HashAlgorithm)
	}
	if meta.IsDefined("mac_algorithm") {
		cfg.MACAlgorithm = digest.Normalize(raw.MACAlgorithm)
	}
	if meta.IsDefined("signing_secret_file") {
		secretPath := strings.TrimSpace(raw.SigningSecretFile)
		if !filepath.IsAbs(secretPath) {
			secretPath = filepath.Join(filepath.Dir(path), secretPath)
		}
		secret, err := os.ReadFile(secretPath)
		if err != nil {
			return ledger.Config{}, fmt.Errorf("read signing secret: %w", err)
		}
		cfg.Secret = []byte(strings.TrimSpace(string(secret)))
	}

	if err := cfg.Validate(); err != nil {
		return ledger.Config{}, err
	}
	return cfg, nil
}
