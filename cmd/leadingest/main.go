// Command leadingest processes the unseen messages of the lead inbox:
// each message is parsed into a lead record, deduplicated against the
// store, persisted when new, and moved into its outcome folder.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/lead-ingest/internal/cli"
	"github.com/nhle/lead-ingest/internal/mailbox"
	"github.com/nhle/lead-ingest/internal/model"
	"github.com/nhle/lead-ingest/internal/process"
	"github.com/nhle/lead-ingest/internal/store"
)

func main() {
	configPath := flag.String(
		"config", model.DefaultConfigPath(), "path to config file",
	)
	flag.Parse()

	cfg, log, err := cli.Bootstrap(*configPath)
	if err != nil {
		cli.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	session, err := mailbox.Dial(ctx, mailbox.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		TLS:      cfg.IMAP.TLS,
		Mailbox:  cfg.IMAP.Mailbox,
	})
	if err != nil {
		log.Error("connecting to mailbox", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("closing mailbox session", "error", err)
		}
	}()

	summary, err := process.New(session, st, log).Run(ctx)
	log.Info("run finished",
		"total", summary.Total,
		"processed", summary.Processed,
		"duplicates", summary.Duplicates,
		"errors", summary.Errors,
	)
	if err != nil {
		log.Error("run aborted", "error", err)
		os.Exit(1)
	}
}
