package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// IMAPConfig holds the settings for the inbound mailbox connection.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// Mailbox is the folder scanned for unseen lead messages.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`
}

// SMTPConfig holds the settings for outbound notification mail.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// From is the sender address on outbound mail; defaults to Username.
	From string `mapstructure:"from" yaml:"from"`
}

// DatabaseConfig holds the lead store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SenderConfig holds settings for the welcome-mail sender.
type SenderConfig struct {
	// BatchSize caps how many pending leads one sender run handles.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// BrochurePath is the PDF attached to welcome mail; empty disables
	// the attachment.
	BrochurePath string `mapstructure:"brochure_path" yaml:"brochure_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Sender   SenderConfig   `mapstructure:"sender" yaml:"sender"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/leadingest/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "leadingest", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP: IMAPConfig{
			Port:    "993",
			TLS:     true,
			Mailbox: "INBOX",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Database: DatabaseConfig{
			Path: "leads.db",
		},
		Sender: SenderConfig{
			BatchSize: 10,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables with the LEADINGEST_ prefix override file values
// (e.g. LEADINGEST_IMAP_PASSWORD). If the file does not exist, it returns
// a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("database.path", "leads.db")
	v.SetDefault("sender.batch_size", 10)

	v.SetEnvPrefix("LEADINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"imap.host", "imap.port", "imap.username", "imap.password",
		"smtp.host", "smtp.port", "smtp.username", "smtp.password",
		"database.path",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	return cfg, nil
}
