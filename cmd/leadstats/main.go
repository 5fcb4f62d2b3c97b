// Command leadstats recomputes the per-day lead intake counts and prints
// the resulting table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/nhle/lead-ingest/internal/cli"
	"github.com/nhle/lead-ingest/internal/model"
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

	ctx := context.Background()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.UpdateDailyStatistics(ctx); err != nil {
		log.Error("updating statistics", "error", err)
		os.Exit(1)
	}

	stats, err := st.DailyStatistics(ctx)
	if err != nil {
		log.Error("reading statistics", "error", err)
		os.Exit(1)
	}

	for _, stat := range stats {
		fmt.Printf("%s\t%d\n", stat.Date, stat.Count)
	}
	log.Info("statistics updated", "days", len(stats))
}
