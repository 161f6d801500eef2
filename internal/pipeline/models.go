package pipeline

import (
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/validation"
)

// Row is one CSV data row keyed by canonical column name.
type Row struct {
	Line   int // 1-based line number in the file, header included
	Fields map[string]string
}

func (r Row) get(column string) string {
	return r.Fields[column]
}

// missingFields records which optional money columns a row left empty.
type missingFields struct {
	commission, net       bool
	commissionTRY, netTRY bool
}

// RowError describes a rejected row.
type RowError struct {
	Line   int                     `json:"line"`
	Errors []validation.FieldError `json:"errors"`
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source string
	Data   []byte
	Rows   []Row

	Transactions []domain.Transaction
	// missing is aligned with Transactions.
	missing []missingFields

	Rejected []RowError
	Report   Report
}

func (s *PipelineState) reject(line int, errs ...validation.FieldError) {
	s.Report.Skipped++
	if len(s.Rejected) < MaxRowErrors {
		s.Rejected = append(s.Rejected, RowError{Line: line, Errors: errs})
	}
}

// Report summarizes an import run.
type Report struct {
	Source           string     `json:"source"`
	Rows             int        `json:"rows"`
	Imported         int        `json:"imported"`
	Skipped          int        `json:"skipped"`
	CommissionFilled int        `json:"commission_filled"`
	DryRun           bool       `json:"dry_run"`
	Rejected         []RowError `json:"rejected,omitempty"`
}
