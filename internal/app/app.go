// Package app opens the repositories and cache selected by a config.Config. The
// commands share it so they all resolve storage the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/psp-ledger/internal/cache"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/psp-ledger/internal/infra/bigquery"
	"github.com/dvloznov/psp-ledger/internal/infra/inmemory"
	"github.com/dvloznov/psp-ledger/internal/infra/postgres"
	"github.com/dvloznov/psp-ledger/internal/pipeline"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/rs/zerolog"
)

// redisKeyPrefix namespaces the shared cache keys in Redis.
const redisKeyPrefix = "psp-ledger"

// Stores holds the repositories selected by the config.
type Stores struct {
	Transactions repository.TransactionRepository
	Allocations  repository.AllocationRepository
	Rates        repository.CommissionRateRepository

	closers []io.Closer
}

// OpenStores opens the transaction source and the allocation/rate store. With the
// in-memory source, cfg.SeedCSV (a local path or gs:// URI) is imported at startup.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	s := &Stores{}

	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("OpenStores: %w", err)
		}
		repo := postgres.NewRepository(db)
		s.closers = append(s.closers, repo)
		s.Allocations, s.Rates = repo, repo
		log.Info().Msg("Using Postgres for allocations and commission rates")
	} else {
		s.Allocations = inmemory.NewAllocationStore()
		s.Rates = inmemory.NewCommissionRateStore()
		log.Warn().Msg("No Postgres DSN configured - allocations are kept in memory")
	}

	switch cfg.TransactionSource {
	case config.SourceBigQuery:
		repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, infraBQ.Dataset{ProjectID: cfg.ProjectID, DatasetID: cfg.Dataset})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("OpenStores: %w", err)
		}
		s.closers = append(s.closers, repo)
		s.Transactions = repo
		log.Info().Str("project", cfg.ProjectID).Str("dataset", cfg.Dataset).Msg("Using BigQuery transaction source")

	default:
		store := inmemory.NewTransactionStore()
		s.Transactions = store
		if cfg.SeedCSV != "" {
			importer := pipeline.NewImporter(gcsuploader.NewGCSStorageService(), store, s.Allocations, s.Rates, log)
			report, err := importer.ImportTransactions(ctx, cfg.SeedCSV, pipeline.TransactionOptions{})
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("OpenStores: seeding transactions: %w", err)
			}
			log.Info().Int("imported", report.Imported).Int("skipped", report.Skipped).Msg("Seeded in-memory transaction store")
		}
	}

	return s, nil
}

// Close releases every opened connection.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenCache returns the Redis cache when cfg.RedisAddr is set and the in-process LRU
// otherwise. The returned close function is never nil.
func OpenCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Cache, func() error, error) {
	if cfg.RedisAddr == "" {
		log.Info().Int("size", cfg.CacheSize).Dur("ttl", cfg.CacheTTL).Msg("Using in-process response cache")
		return cache.NewLRU(cfg.CacheSize, cfg.CacheTTL), func() error { return nil }, nil
	}

	c, err := cache.NewRedis(ctx, cfg.RedisAddr, redisKeyPrefix, cfg.CacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenCache: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("Using Redis response cache")
	return c, c.Close, nil
}
