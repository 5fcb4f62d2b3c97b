// Command leadprobe verifies the configured IMAP and SMTP settings by
// connecting to both servers, and can store mail passwords in the OS
// keyring.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/nhle/lead-ingest/internal/cli"
	"github.com/nhle/lead-ingest/internal/credential"
	"github.com/nhle/lead-ingest/internal/mailbox"
	"github.com/nhle/lead-ingest/internal/model"
)

func main() {
	configPath := flag.String(
		"config", model.DefaultConfigPath(), "path to config file",
	)
	setIMAPPass := flag.Bool(
		"set-imap-password", false, "read the IMAP password from stdin and store it in the keyring",
	)
	setSMTPPass := flag.Bool(
		"set-smtp-password", false, "read the SMTP password from stdin and store it in the keyring",
	)
	flag.Parse()

	if *setIMAPPass || *setSMTPPass {
		if err := storePasswords(*setIMAPPass, *setSMTPPass); err != nil {
			cli.Fatal(err)
		}
		return
	}

	cfg, log, err := cli.Bootstrap(*configPath)
	if err != nil {
		cli.Fatal(err)
	}

	if err := checkSettings(cfg); err != nil {
		log.Error("incomplete configuration", "error", err)
		os.Exit(1)
	}

	failed := false

	session, err := mailbox.Dial(context.Background(), mailbox.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		TLS:      cfg.IMAP.TLS,
		Mailbox:  cfg.IMAP.Mailbox,
	})
	if err != nil {
		log.Error("IMAP connection failed", "host", cfg.IMAP.Host, "error", err)
		failed = true
	} else {
		log.Info("IMAP connection successful", "host", cfg.IMAP.Host)
		_ = session.Close()
	}

	dialer := gomail.NewDialer(
		cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password,
	)
	closer, err := dialer.Dial()
	if err != nil {
		log.Error("SMTP connection failed", "host", cfg.SMTP.Host, "error", err)
		failed = true
	} else {
		log.Info("SMTP connection successful", "host", cfg.SMTP.Host)
		_ = closer.Close()
	}

	if failed {
		os.Exit(1)
	}
}

// checkSettings reports the first missing required setting.
func checkSettings(cfg *model.AppConfig) error {
	required := []struct {
		name, value string
	}{
		{"imap.host", cfg.IMAP.Host},
		{"imap.port", cfg.IMAP.Port},
		{"imap.username", cfg.IMAP.Username},
		{"imap.password", cfg.IMAP.Password},
		{"smtp.host", cfg.SMTP.Host},
		{"smtp.username", cfg.SMTP.Username},
		{"smtp.password", cfg.SMTP.Password},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required setting: %s", r.name)
		}
	}
	return nil
}

// storePasswords reads one password per requested key from stdin and
// saves it in the system keyring.
func storePasswords(imapPass, smtpPass bool) error {
	reader := bufio.NewReader(os.Stdin)

	read := func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	if imapPass {
		pass, err := read("IMAP password: ")
		if err != nil {
			return err
		}
		if err := credential.Set(credential.KeyIMAPPassword, pass); err != nil {
			return err
		}
	}

	if smtpPass {
		pass, err := read("SMTP password: ")
		if err != nil {
			return err
		}
		if err := credential.Set(credential.KeySMTPPassword, pass); err != nil {
			return err
		}
	}

	return nil
}
