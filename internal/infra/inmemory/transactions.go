// Package inmemory provides repository implementations backed by process memory.
// They are used for local development, the CLI and tests. Data is lost on restart.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/google/uuid"
)

// TransactionStore is an in-memory TransactionRepository. It is safe for concurrent use.
type TransactionStore struct {
	mu  sync.RWMutex
	txs []domain.Transaction
	ids map[string]struct{}
}

// NewTransactionStore creates a store seeded with txs.
func NewTransactionStore(txs ...domain.Transaction) *TransactionStore {
	s := &TransactionStore{ids: make(map[string]struct{})}
	_ = s.InsertTransactions(context.Background(), txs)
	return s
}

// InsertTransactions appends txs. Missing IDs and creation timestamps are filled in;
// a duplicate ID is rejected and nothing from the batch is stored.
func (s *TransactionStore) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	batch := make([]domain.Transaction, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		if _, exists := s.ids[tx.ID]; exists {
			return fmt.Errorf("InsertTransactions: duplicate transaction id %s", tx.ID)
		}
		if _, exists := seen[tx.ID]; exists {
			return fmt.Errorf("InsertTransactions: duplicate transaction id %s in batch", tx.ID)
		}
		seen[tx.ID] = struct{}{}
		batch = append(batch, tx)
	}

	for _, tx := range batch {
		s.ids[tx.ID] = struct{}{}
	}
	s.txs = append(s.txs, batch...)
	return nil
}

// QueryTransactions returns copies of the transactions matching filter ordered by
// business date then creation time. With a limit, the most recently created
// matches are kept.
func (s *TransactionStore) QueryTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]domain.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if filter.Match(tx) {
			result = append(result, tx)
		}
	}
	s.mu.RUnlock()

	if filter.Limit > 0 && filter.Limit < len(result) {
		sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
		result = result[:filter.Limit]
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

var _ repository.TransactionRepository = (*TransactionStore)(nil)
