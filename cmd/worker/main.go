// Command worker runs scheduled ledger exports. On every tick it enqueues an export
// of the trailing window to GCS and, when Notion is configured, mirrors the rollover
// summary for the same window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/app"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/jobs"
	"github.com/dvloznov/psp-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/notionsync"
	"github.com/dvloznov/psp-ledger/internal/reporting"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	cfg := config.Register(fs)
	interval := fs.Duration("interval", 24*time.Hour, "Time between scheduled runs")
	days := fs.Int("days", 1, "Number of trailing days (ending yesterday) covered by each run")
	runOnce := fs.Bool("once", false, "Run a single cycle and exit")
	fs.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *days <= 0 {
		fmt.Fprintln(os.Stderr, "-days must be positive")
		os.Exit(2)
	}

	log, err := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cfg.ExportBucket == "" {
		log.Fatal().Msg("Error: -bucket is required for the export worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repositories")
	}
	defer stores.Close()

	reports := reporting.NewService(stores.Transactions, stores.Allocations, stores.Rates, log)

	// Initialize job store and queue
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(2))

	handler := reporting.NewExportJobHandler(reports, gcsuploader.NewGCSStorageService(), cfg.ExportBucket, log)
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	var notion notionsync.NotionService
	if cfg.NotionToken != "" {
		notion = notionsync.NewNotionClient(cfg.NotionToken)
	}

	// A single run exports inline so the process does not exit before the upload.
	publish := jobQueue.PublishExportLedger
	if *runOnce {
		publish = func(ctx context.Context, job *jobs.ExportLedgerJob) error {
			job.JobID = uuid.NewString()
			job.CreatedAt = time.Now().UTC()
			return handler(ctx, job)
		}
	}

	cycle := func() {
		start, end := window(time.Now(), *days)
		runCycle(ctx, log, publish, reports, notion, cfg.NotionDatabaseID, start, end)
	}

	log.Info().Dur("interval", *interval).Int("days", *days).Msg("Worker service started")
	cycle()

	if !*runOnce {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	loop:
		for {
			select {
			case <-ticker.C:
				cycle()
			case <-quit:
				break loop
			}
		}
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

// window returns the n business days ending yesterday in UTC.
func window(now time.Time, n int) (civil.Date, civil.Date) {
	end := civil.DateOf(now.UTC()).AddDays(-1)
	return end.AddDays(-(n - 1)), end
}

func runCycle(ctx context.Context, log zerolog.Logger, publish func(context.Context, *jobs.ExportLedgerJob) error, reports *reporting.Service, notion notionsync.NotionService, notionDB string, start, end civil.Date) {
	job := &jobs.ExportLedgerJob{StartDate: start, EndDate: end}
	if err := publish(ctx, job); err != nil {
		log.Error().Err(err).Msg("Scheduled export failed")
	} else {
		log.Info().Str("job_id", job.JobID).Stringer("start_date", start).Stringer("end_date", end).Msg("Scheduled export submitted")
	}

	if notion == nil {
		return
	}

	q := reporting.Query{StartDate: start, EndDate: end}
	summary, err := reports.RolloverSummary(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute rollover summary for Notion")
		return
	}
	if _, err := notionsync.SyncRolloverSummary(logger.WithContext(ctx, log), notion, notionDB, summary, notionsync.Options{Period: q.Period()}); err != nil {
		log.Error().Err(err).Msg("Notion sync failed")
	}
}
