package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig creates a sample configuration file at the default location.
//
// Returns the path the config was written to. Fails if the file already
// exists unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath creates a sample configuration file at the given path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()

	// A fresh secret makes the config usable for development out of the box.
	// Production deployments should replace it via the environment.
	secret, err := generateRandomSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.API.JWT.Secret = secret

	// Default the database file next to the config file
	if cfg.Database.SQLite.Path == "" || cfg.Database.SQLite.Path == ":memory:" {
		cfg.Database.SQLite.Path = filepath.Join(filepath.Dir(path), "sciauthz.db")
	}

	return SaveConfig(cfg, path)
}

// generateRandomSecret returns a 64-character hex string (32 bytes of entropy).
func generateRandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
