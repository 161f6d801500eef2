package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/dvloznov/psp-ledger/internal/validation"
	"github.com/shopspring/decimal"
)

// FetchSourceStep reads the import file from GCS or the local filesystem.
type FetchSourceStep struct {
	Storage StorageService
}

func (s *FetchSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	if gcsuploader.IsGCSURI(state.Source) {
		if s.Storage == nil {
			return fmt.Errorf("FetchSourceStep: %s: no storage service configured", state.Source)
		}
		data, err := s.Storage.FetchFromGCS(ctx, state.Source)
		if err != nil {
			return fmt.Errorf("FetchSourceStep: %w", err)
		}
		state.Data = data
		return nil
	}

	data, err := os.ReadFile(state.Source)
	if err != nil {
		return fmt.Errorf("FetchSourceStep: %w", err)
	}
	state.Data = data
	return nil
}

// ParseCSVStep splits the file into rows.
type ParseCSVStep struct {
	Required []string
}

func (s *ParseCSVStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := parseCSV(state.Data, s.Required)
	if err != nil {
		return err
	}
	state.Rows = rows
	state.Report.Rows = len(rows)
	return nil
}

// ValidateTransactionsStep converts rows to transactions. Invalid rows are skipped
// and recorded in the report.
type ValidateTransactionsStep struct{}

func (s *ValidateTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	state.Transactions = make([]domain.Transaction, 0, len(state.Rows))
	state.missing = make([]missingFields, 0, len(state.Rows))
	for _, row := range state.Rows {
		in := toInput(row)
		tx, errs := validation.Transaction(in)
		if len(errs) > 0 {
			log.Warn().Int("line", row.Line).Interface("errors", errs).Msg("Skipping invalid row")
			state.reject(row.Line, errs...)
			continue
		}
		state.Transactions = append(state.Transactions, tx)
		state.missing = append(state.missing, missingOf(in))
	}
	return nil
}

// FillCommissionStep charges each PSP's standard rate on rows without a
// commission. PSPs without an active rate are left untouched.
type FillCommissionStep struct {
	Rates repository.CommissionRateRepository
}

func (s *FillCommissionStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	rates := make(map[string]*decimal.Decimal)

	for i := range state.Transactions {
		tx := &state.Transactions[i]
		if !tx.HasPSP() {
			continue
		}
		if !state.missing[i].commission && !state.missing[i].commissionTRY {
			continue
		}

		key := strings.ToLower(tx.PSPName())
		rate, cached := rates[key]
		if !cached {
			r, err := s.Rates.GetCommissionRate(ctx, tx.PSPName())
			switch {
			case errors.Is(err, repository.ErrNotFound):
				log.Warn().Str("psp", tx.PSPName()).Msg("No commission rate configured, leaving commission empty")
			case err != nil:
				return fmt.Errorf("FillCommissionStep: loading rate for %s: %w", tx.PSPName(), err)
			default:
				rate = &r.Rate
			}
			rates[key] = rate
		}
		if rate == nil {
			continue
		}

		if fillCommission(tx, state.missing[i], *rate) {
			state.Report.CommissionFilled++
		}
	}
	return nil
}

// InsertTransactionsStep writes the validated transactions in batches.
type InsertTransactionsStep struct {
	Repo repository.TransactionRepository
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for i := 0; i < len(state.Transactions); i += BatchSize {
		end := i + BatchSize
		if end > len(state.Transactions) {
			end = len(state.Transactions)
		}

		if err := s.Repo.InsertTransactions(ctx, state.Transactions[i:end]); err != nil {
			return fmt.Errorf("InsertTransactionsStep: batch %d-%d: %w", i, end, err)
		}
		state.Report.Imported += end - i

		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Inserted batch")
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
