package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/app"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/notionsync"
	"github.com/dvloznov/psp-ledger/internal/reporting"
)

func main() {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	cfg := config.Register(fs)
	startDateStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	prune := fs.Bool("prune", false, "Archive pages for PSPs absent from the summary")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Validate required flags
	if *startDateStr == "" {
		log.Fatal().Msg("Error: -start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: -end-date is required")
	}
	if cfg.NotionToken == "" {
		log.Fatal().Msg("Error: -notion-token and -notion-db are required")
	}

	startDate, err := civil.ParseDate(*startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}
	endDate, err := civil.ParseDate(*endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}

	q := reporting.Query{StartDate: startDate, EndDate: endDate}
	if err := q.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Error: end-date must not be before start-date")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repositories")
	}
	defer stores.Close()

	summary, err := reporting.NewService(stores.Transactions, stores.Allocations, stores.Rates, log).RolloverSummary(ctx, q)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute rollover summary")
	}

	result, err := notionsync.SyncRolloverSummary(ctx, notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID, summary, notionsync.Options{
		Period: q.Period(),
		Prune:  *prune,
		DryRun: *dryRun,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n", result.Created, result.Updated, result.Archived, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
