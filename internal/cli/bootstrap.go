// Package cli holds the bootstrap code shared by the command binaries.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/nhle/lead-ingest/internal/credential"
	"github.com/nhle/lead-ingest/internal/model"
)

// Bootstrap loads the .env overlay and the YAML config, resolves blank
// mail passwords from the OS keyring, and returns the config together
// with a structured logger.
func Bootstrap(configPath string) (*model.AppConfig, *slog.Logger, error) {
	// Optional .env next to the binary; absence is fine.
	_ = godotenv.Load()

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.IMAP.Password == "" {
		if pass, err := credential.Get(credential.KeyIMAPPassword); err == nil {
			cfg.IMAP.Password = pass
		}
	}
	if cfg.SMTP.Password == "" {
		if pass, err := credential.Get(credential.KeySMTPPassword); err == nil {
			cfg.SMTP.Password = pass
		}
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	return cfg, log, nil
}

// Fatal prints the error and exits. Used before a logger exists.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, "leadingest:", err)
	os.Exit(1)
}
