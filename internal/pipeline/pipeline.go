// Package pipeline imports transactions and manual allocations from CSV files
// stored locally or in GCS.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/dvloznov/psp-ledger/internal/validation"
	"github.com/rs/zerolog"
)

// Importer wires the import pipelines to their repositories.
type Importer struct {
	storage StorageService
	txs     repository.TransactionRepository
	allocs  repository.AllocationRepository
	rates   repository.CommissionRateRepository
	log     zerolog.Logger
}

// NewImporter creates an Importer. storage is only needed for gs:// sources and
// rates only for commission filling; either may be nil.
func NewImporter(storage StorageService, txs repository.TransactionRepository, allocs repository.AllocationRepository, rates repository.CommissionRateRepository, log zerolog.Logger) *Importer {
	return &Importer{storage: storage, txs: txs, allocs: allocs, rates: rates, log: log}
}

// TransactionOptions controls a transaction import.
type TransactionOptions struct {
	// FillCommission charges the PSP's standard rate on rows without a commission.
	FillCommission bool
	DryRun         bool
}

// ImportTransactions loads a transaction CSV from source (a local path or gs:// URI),
// validates every row and inserts the valid ones. Invalid rows are skipped and
// reported; the import only fails when the file itself cannot be read or stored.
func (im *Importer) ImportTransactions(ctx context.Context, source string, opts TransactionOptions) (*Report, error) {
	ctx = logger.WithContext(ctx, im.log.With().Str("source", source).Logger())

	steps := []PipelineStep{
		&FetchSourceStep{Storage: im.storage},
		&ParseCSVStep{Required: transactionColumns},
		&ValidateTransactionsStep{},
	}
	if opts.FillCommission {
		if im.rates == nil {
			return nil, fmt.Errorf("ImportTransactions: commission filling needs a rate repository")
		}
		steps = append(steps, &FillCommissionStep{Rates: im.rates})
	}
	if !opts.DryRun {
		steps = append(steps, &InsertTransactionsStep{Repo: im.txs})
	}

	state := &PipelineState{Source: source, Report: Report{Source: source, DryRun: opts.DryRun}}
	if err := NewPipeline(steps...).Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("ImportTransactions: %w", err)
	}

	state.Report.Rejected = state.Rejected
	im.log.Info().
		Str("source", source).
		Int("rows", state.Report.Rows).
		Int("imported", state.Report.Imported).
		Int("skipped", state.Report.Skipped).
		Int("commission_filled", state.Report.CommissionFilled).
		Bool("dry_run", opts.DryRun).
		Msg("Transaction import completed")

	return &state.Report, nil
}

// ImportAllocations loads an allocation CSV (date, psp, allocation) and upserts each
// row, so a later row for the same date and PSP overwrites an earlier one. Rows with
// an invalid date, an empty PSP or a malformed amount are skipped and reported.
func (im *Importer) ImportAllocations(ctx context.Context, source string, dryRun bool) (*Report, error) {
	ctx = logger.WithContext(ctx, im.log.With().Str("source", source).Logger())

	state := &PipelineState{Source: source, Report: Report{Source: source, DryRun: dryRun}}
	err := NewPipeline(
		&FetchSourceStep{Storage: im.storage},
		&ParseCSVStep{Required: allocationColumns},
	).Execute(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("ImportAllocations: %w", err)
	}

	for _, row := range state.Rows {
		psp := validation.Sanitize(row.get("psp"))
		if psp == "" {
			state.reject(row.Line, validation.FieldError{Field: "psp", Message: "PSP is required"})
			continue
		}

		date, err := ledger.ParseBusinessDate(row.get("date"), psp)
		if err != nil {
			state.reject(row.Line, validation.FieldError{Field: "date", Message: err.Error()})
			continue
		}

		amount := validation.Amount(row.get("allocation"))
		if !amount.Valid {
			state.reject(row.Line, validation.FieldError{Field: "allocation", Message: amount.Error})
			continue
		}

		if dryRun {
			state.Report.Imported++
			continue
		}
		if _, err := im.allocs.UpsertAllocation(ctx, date, psp, amount.Value); err != nil {
			return nil, fmt.Errorf("ImportAllocations: line %d: %w", row.Line, err)
		}
		state.Report.Imported++
	}

	state.Report.Rejected = state.Rejected
	im.log.Info().
		Str("source", source).
		Int("rows", state.Report.Rows).
		Int("imported", state.Report.Imported).
		Int("skipped", state.Report.Skipped).
		Bool("dry_run", dryRun).
		Msg("Allocation import completed")

	return &state.Report, nil
}
