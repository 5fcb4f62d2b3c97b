// Command leadsend delivers the templated welcome mail to leads whose
// delivery status is still pending, in batches.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/lead-ingest/internal/cli"
	"github.com/nhle/lead-ingest/internal/model"
	"github.com/nhle/lead-ingest/internal/notify"
	"github.com/nhle/lead-ingest/internal/store"
)

func main() {
	configPath := flag.String(
		"config", model.DefaultConfigPath(), "path to config file",
	)
	batchSize := flag.Int(
		"batch", 0, "max leads to mail this run (0 = config default)",
	)
	flag.Parse()

	cfg, log, err := cli.Bootstrap(*configPath)
	if err != nil {
		cli.Fatal(err)
	}

	size := *batchSize
	if size <= 0 {
		size = cfg.Sender.BatchSize
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

	sender := notify.NewSender(cfg.SMTP, cfg.Sender.BrochurePath, st, log)

	sent, failed, err := sender.SendPending(ctx, size)
	log.Info("batch finished", "sent", sent, "failed", failed)
	if err != nil {
		log.Error("batch aborted", "error", err)
		os.Exit(1)
	}
}
