package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/psp-ledger/internal/analytics"
	"github.com/dvloznov/psp-ledger/internal/api/handlers"
	"github.com/dvloznov/psp-ledger/internal/api/middleware"
	"github.com/dvloznov/psp-ledger/internal/app"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/insights"
	"github.com/dvloznov/psp-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/reporting"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load("api", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Amounts are served as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repositories")
	}
	defer stores.Close()

	responseCache, closeCache, err := app.OpenCache(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer closeCache()

	var narrator analytics.Narrator
	if cfg.InsightsEnabled() {
		gemini, err := insights.NewGeminiNarrator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini narrator")
		}
		narrator = gemini
		log.Info().Str("model", cfg.GeminiModel).Msg("Narrative insights enabled")
	}

	reports := reporting.NewService(stores.Transactions, stores.Allocations, stores.Rates, log)
	metrics := analytics.NewService(stores.Transactions, narrator, log)

	if cfg.ExportBucket == "" {
		log.Warn().Msg("No GCS bucket configured - asynchronous exports will be disabled")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	exportHandler := reporting.NewExportJobHandler(reports, gcsuploader.NewGCSStorageService(), cfg.ExportBucket, log)
	go func() {
		log.Info().Msg("Starting export worker")
		if err := jobQueue.Start(workerCtx, exportHandler); err != nil {
			log.Error().Err(err).Msg("Export worker stopped with error")
		}
	}()

	// Initialize handlers
	ledgerHandler := handlers.NewLedgerHandler(reports, responseCache, log)
	analyticsHandler := handlers.NewAnalyticsHandler(metrics, responseCache, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	exportsHandler := handlers.NewExportsHandler(jobQueue, cfg.ExportBucket, log)
	cacheHandler := handlers.NewCacheHandler(responseCache, log)

	mux := http.NewServeMux()

	// Ledger endpoints
	mux.Handle("/api/ledger", handlers.MethodHandler{http.MethodGet: ledgerHandler.GetLedger})
	mux.Handle("/api/ledger/rollover-summary", handlers.MethodHandler{http.MethodGet: ledgerHandler.GetRolloverSummary})
	mux.Handle("/api/ledger/allocations", handlers.MethodHandler{
		http.MethodPost: ledgerHandler.SetAllocation,
		http.MethodPut:  ledgerHandler.SetAllocation,
	})
	mux.Handle("/api/ledger/psp-period", handlers.MethodHandler{http.MethodGet: ledgerHandler.GetPSPPeriod})
	mux.Handle("/api/ledger/export", handlers.MethodHandler{http.MethodGet: ledgerHandler.ExportLedger})

	// Analytics endpoints
	mux.Handle("/api/analytics/dashboard-stats", handlers.MethodHandler{http.MethodGet: analyticsHandler.DashboardStats})
	mux.Handle("/api/analytics/revenue-trends", handlers.MethodHandler{http.MethodGet: analyticsHandler.RevenueTrends})
	mux.Handle("/api/analytics/volume", handlers.MethodHandler{http.MethodGet: analyticsHandler.VolumeAnalysis})
	mux.Handle("/api/analytics/clients", handlers.MethodHandler{http.MethodGet: analyticsHandler.ClientSegmentation})
	mux.Handle("/api/analytics/commission", handlers.MethodHandler{http.MethodGet: analyticsHandler.CommissionAnalytics})
	mux.Handle("/api/analytics/recommendations", handlers.MethodHandler{http.MethodGet: analyticsHandler.Recommendations})

	// Export and job endpoints
	mux.Handle("/api/exports", handlers.MethodHandler{http.MethodPost: exportsHandler.CreateExport})
	mux.Handle("/api/jobs", handlers.MethodHandler{http.MethodGet: jobsHandler.ListJobs})
	mux.Handle("/api/jobs/", handlers.MethodHandler{http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}})

	mux.Handle("/api/cache", handlers.MethodHandler{http.MethodDelete: cacheHandler.Clear})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if cfg.JWTSecret == "" {
		log.Warn().Msg("No JWT secret configured - API authentication is disabled")
	}

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(cfg.JWTSecret, "/health")(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("source", cfg.TransactionSource).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight exports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
