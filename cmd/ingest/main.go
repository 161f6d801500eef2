// Command ingest loads a transaction CSV into the configured transaction source.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dvloznov/psp-ledger/internal/app"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/pipeline"
)

func main() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cfg := config.Register(fs)
	source := fs.String("file", "", "Local CSV path or gs:// URI of the transaction export (required)")
	fill := fs.Bool("fill-commission", true, "Charge each PSP's standard rate on rows without a commission")
	dryRun := fs.Bool("dry-run", false, "Validate without inserting")
	archive := fs.Bool("archive", false, "Upload a local source file to -bucket after a successful import")
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

	if *source == "" {
		log.Fatal().Msg("Error: -file is required")
	}
	if *archive && cfg.ExportBucket == "" {
		log.Fatal().Msg("Error: -archive requires -bucket")
	}
	if cfg.TransactionSource != config.SourceBigQuery && !*dryRun {
		log.Warn().Msg("Ingesting into the in-memory source - rows are discarded on exit")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repositories")
	}
	defer stores.Close()

	log.Info().Str("source", *source).Bool("dry_run", *dryRun).Msg("Starting ingestion")

	importer := pipeline.NewImporter(gcsuploader.NewGCSStorageService(), stores.Transactions, stores.Allocations, stores.Rates, log)
	report, err := importer.ImportTransactions(ctx, *source, pipeline.TransactionOptions{FillCommission: *fill, DryRun: *dryRun})
	if err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		stores.Close()
		os.Exit(1)
	}

	for _, rejected := range report.Rejected {
		log.Warn().Int("line", rejected.Line).Interface("errors", rejected.Errors).Msg("Rejected row")
	}

	if *archive && !*dryRun && !gcsuploader.IsGCSURI(*source) {
		object := path.Join("imports", time.Now().UTC().Format("2006-01-02"), filepath.Base(*source))
		uri, err := gcsuploader.UploadFile(ctx, cfg.ExportBucket, object, *source)
		if err != nil {
			log.Error().Err(err).Msg("Failed to archive source file")
		} else {
			log.Info().Str("uri", uri).Msg("Archived source file")
		}
	}

	fmt.Printf("Ingestion completed: %d imported, %d skipped, %d commissions filled.\n", report.Imported, report.Skipped, report.CommissionFilled)
}
