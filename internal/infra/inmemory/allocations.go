package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type allocationKey struct {
	date civil.Date
	psp  string
}

// AllocationStore is an in-memory AllocationRepository. Upserts for the same
// (date, psp) are serialised by a per-key lock; different keys proceed in parallel.
type AllocationStore struct {
	mu    sync.RWMutex
	rows  map[allocationKey]domain.Allocation
	locks sync.Map // allocationKey -> *sync.Mutex

	now func() time.Time
}

// NewAllocationStore creates an empty allocation store.
func NewAllocationStore() *AllocationStore {
	return &AllocationStore{
		rows: make(map[allocationKey]domain.Allocation),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *AllocationStore) keyLock(k allocationKey) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(k, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// UpsertAllocation stores amount for (date, psp), replacing any previous value.
func (s *AllocationStore) UpsertAllocation(ctx context.Context, date civil.Date, psp string, amount decimal.Decimal) (*domain.Allocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := allocationKey{date: date, psp: psp}
	l := s.keyLock(k)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	row, exists := s.rows[k]
	s.mu.RUnlock()

	now := s.now()
	if exists {
		row.Amount = amount
		row.UpdatedAt = now
	} else {
		row = domain.Allocation{
			ID:        uuid.New().String(),
			Date:      date,
			PSPName:   psp,
			Amount:    amount,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	s.mu.Lock()
	s.rows[k] = row
	s.mu.Unlock()

	return &row, nil
}

// ListAllocations returns the allocations matching filter ordered by date then PSP.
func (s *AllocationStore) ListAllocations(ctx context.Context, filter repository.AllocationFilter) ([]domain.Allocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]domain.Allocation, 0, len(s.rows))
	for _, row := range s.rows {
		if filter.Match(row) {
			result = append(result, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].PSPName < result[j].PSPName
	})
	return result, nil
}

var _ repository.AllocationRepository = (*AllocationStore)(nil)
