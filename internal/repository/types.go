// Package repository defines the storage contracts used by the ledger, analytics and
// HTTP layers. Implementations live under internal/infra.
package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

// TransactionFilter narrows a transaction query. Zero values mean "no constraint".
type TransactionFilter struct {
	// StartDate and EndDate bound the business date, both inclusive.
	StartDate civil.Date
	EndDate   civil.Date

	// CreatedFrom (inclusive) and CreatedTo (exclusive) bound the ingestion timestamp.
	CreatedFrom time.Time
	CreatedTo   time.Time

	// PSP matches case-insensitively, see domain.SamePSP.
	PSP string

	// Limit caps the number of rows returned, newest created_at first when set.
	Limit int
}

// Match reports whether tx satisfies every constraint of the filter except Limit.
func (f TransactionFilter) Match(tx domain.Transaction) bool {
	if IsSet(f.StartDate) && tx.Date.Before(f.StartDate) {
		return false
	}
	if IsSet(f.EndDate) && tx.Date.After(f.EndDate) {
		return false
	}
	if !f.CreatedFrom.IsZero() && tx.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && !tx.CreatedAt.Before(f.CreatedTo) {
		return false
	}
	if f.PSP != "" && !domain.SamePSP(tx.PSPName(), f.PSP) {
		return false
	}
	return true
}

// AllocationFilter narrows an allocation listing. Zero values mean "no constraint".
type AllocationFilter struct {
	StartDate civil.Date
	EndDate   civil.Date
	PSP       string // case-insensitive
}

// Match reports whether a satisfies the filter.
func (f AllocationFilter) Match(a domain.Allocation) bool {
	if IsSet(f.StartDate) && a.Date.Before(f.StartDate) {
		return false
	}
	if IsSet(f.EndDate) && a.Date.After(f.EndDate) {
		return false
	}
	if f.PSP != "" && !domain.SamePSP(a.PSPName, f.PSP) {
		return false
	}
	return true
}

// IsSet reports whether d carries a value.
func IsSet(d civil.Date) bool {
	return d != civil.Date{}
}

// TransactionRepository is the read/ingest side of the transaction source.
// Transactions are immutable once inserted.
type TransactionRepository interface {
	QueryTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
	InsertTransactions(ctx context.Context, txs []domain.Transaction) error
}

// AllocationRepository stores manual allocations keyed by (date, psp).
// UpsertAllocation must be atomic per key; the last write wins.
type AllocationRepository interface {
	UpsertAllocation(ctx context.Context, date civil.Date, psp string, amount decimal.Decimal) (*domain.Allocation, error)
	ListAllocations(ctx context.Context, filter AllocationFilter) ([]domain.Allocation, error)
}

// CommissionRateRepository stores the standard commission rate per PSP.
type CommissionRateRepository interface {
	// GetCommissionRate returns ErrNotFound when psp has no active rate.
	GetCommissionRate(ctx context.Context, psp string) (*domain.CommissionRate, error)
	SetCommissionRate(ctx context.Context, rate domain.CommissionRate) error
	ListCommissionRates(ctx context.Context) ([]domain.CommissionRate, error)
}
