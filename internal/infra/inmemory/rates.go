package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/repository"
)

// CommissionRateStore is an in-memory CommissionRateRepository.
type CommissionRateStore struct {
	mu    sync.RWMutex
	rates map[string]domain.CommissionRate
}

// NewCommissionRateStore creates a store seeded with rates.
func NewCommissionRateStore(rates ...domain.CommissionRate) *CommissionRateStore {
	s := &CommissionRateStore{rates: make(map[string]domain.CommissionRate)}
	for _, r := range rates {
		s.rates[domain.PSPKey(r.PSPName)] = r
	}
	return s
}

// GetCommissionRate returns the active rate for psp, matched case-insensitively.
func (s *CommissionRateStore) GetCommissionRate(ctx context.Context, psp string) (*domain.CommissionRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rates[domain.PSPKey(psp)]
	if !exists || !r.IsActive {
		return nil, fmt.Errorf("GetCommissionRate: %s: %w", psp, repository.ErrNotFound)
	}
	return &r, nil
}

// SetCommissionRate creates or replaces the rate for rate.PSPName.
func (s *CommissionRateStore) SetCommissionRate(ctx context.Context, rate domain.CommissionRate) error {
	if rate.PSPName == "" {
		return fmt.Errorf("SetCommissionRate: psp name is required")
	}
	if rate.Rate.IsNegative() {
		return fmt.Errorf("SetCommissionRate: negative rate %s for %s", rate.Rate, rate.PSPName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[domain.PSPKey(rate.PSPName)] = rate
	return nil
}

// ListCommissionRates returns every stored rate ordered by PSP name.
func (s *CommissionRateStore) ListCommissionRates(ctx context.Context) ([]domain.CommissionRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CommissionRate, 0, len(s.rates))
	for _, r := range s.rates {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PSPName < result[j].PSPName })
	return result, nil
}

var _ repository.CommissionRateRepository = (*CommissionRateStore)(nil)
