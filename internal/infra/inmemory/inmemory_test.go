package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestTransactionStore_QueryFilters(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	store := NewTransactionStore(
		domain.Transaction{ID: "a", Date: mustDate(t, "2025-01-01"), PSP: "Alpha", CreatedAt: base},
		domain.Transaction{ID: "b", Date: mustDate(t, "2025-01-02"), PSP: "Beta", CreatedAt: base.Add(time.Hour)},
		domain.Transaction{ID: "c", Date: mustDate(t, "2025-01-03"), PSP: "alpha", CreatedAt: base.Add(2 * time.Hour)},
	)

	all, err := store.QueryTransactions(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	byPSP, err := store.QueryTransactions(ctx, repository.TransactionFilter{PSP: "Alpha"})
	require.NoError(t, err)
	assert.Len(t, byPSP, 2)

	byDate, err := store.QueryTransactions(ctx, repository.TransactionFilter{
		StartDate: mustDate(t, "2025-01-02"),
		EndDate:   mustDate(t, "2025-01-03"),
	})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	byCreated, err := store.QueryTransactions(ctx, repository.TransactionFilter{
		CreatedFrom: base.Add(time.Hour),
		CreatedTo:   base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, byCreated, 1)
	assert.Equal(t, "b", byCreated[0].ID)

	latest, err := store.QueryTransactions(ctx, repository.TransactionFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b", latest[0].ID)
	assert.Equal(t, "c", latest[1].ID)
}

func TestTransactionStore_RejectsDuplicateIDs(t *testing.T) {
	store := NewTransactionStore(domain.Transaction{ID: "a"})

	err := store.InsertTransactions(context.Background(), []domain.Transaction{{ID: "b"}, {ID: "a"}})
	require.Error(t, err)

	all, err := store.QueryTransactions(context.Background(), repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransactionStore_FillsIDAndTimestamp(t *testing.T) {
	store := NewTransactionStore()
	require.NoError(t, store.InsertTransactions(context.Background(), []domain.Transaction{{PSP: "Alpha"}}))

	all, err := store.QueryTransactions(context.Background(), repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func TestAllocationStore_UpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewAllocationStore()
	d := mustDate(t, "2025-01-01")

	first, err := store.UpsertAllocation(ctx, d, "Alpha", decimal.NewFromInt(100))
	require.NoError(t, err)
	second, err := store.UpsertAllocation(ctx, d, "Alpha", decimal.NewFromInt(250))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	rows, err := store.ListAllocations(ctx, repository.AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(250)))
}

func TestAllocationStore_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewAllocationStore()
	d := mustDate(t, "2025-01-01")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			psp := "Alpha"
			if i%2 == 1 {
				psp = "Beta"
			}
			_, err := store.UpsertAllocation(ctx, d, psp, decimal.NewFromInt(int64(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rows, err := store.ListAllocations(ctx, repository.AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].PSPName)
	assert.Equal(t, "Beta", rows[1].PSPName)
}

func TestAllocationStore_ListFilter(t *testing.T) {
	ctx := context.Background()
	store := NewAllocationStore()
	for _, s := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		_, err := store.UpsertAllocation(ctx, mustDate(t, s), "Alpha", decimal.NewFromInt(1))
		require.NoError(t, err)
	}
	_, err := store.UpsertAllocation(ctx, mustDate(t, "2025-01-02"), "Beta", decimal.NewFromInt(1))
	require.NoError(t, err)

	rows, err := store.ListAllocations(ctx, repository.AllocationFilter{
		StartDate: mustDate(t, "2025-01-02"),
		PSP:       "Alpha",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, mustDate(t, "2025-01-02"), rows[0].Date)
}

func TestCommissionRateStore(t *testing.T) {
	ctx := context.Background()
	store := NewCommissionRateStore(domain.CommissionRate{PSPName: "Alpha", Rate: decimal.RequireFromString("0.075"), IsActive: true})

	r, err := store.GetCommissionRate(ctx, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, "0.075", r.Rate.String())

	_, err = store.GetCommissionRate(ctx, "Beta")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	require.NoError(t, store.SetCommissionRate(ctx, domain.CommissionRate{PSPName: "Alpha", Rate: decimal.RequireFromString("0.05")}))
	_, err = store.GetCommissionRate(ctx, "Alpha")
	assert.True(t, errors.Is(err, repository.ErrNotFound), "inactive rates are not returned")

	assert.Error(t, store.SetCommissionRate(ctx, domain.CommissionRate{PSPName: "Gamma", Rate: decimal.NewFromInt(-1)}))

	rates, err := store.ListCommissionRates(ctx)
	require.NoError(t, err)
	assert.Len(t, rates, 1)
}

func TestPSPFiltersIgnoreCase(t *testing.T) {
	ctx := context.Background()
	jan15 := mustDate(t, "2025-01-15")

	txs := NewTransactionStore(domain.Transaction{ID: "1", Date: jan15, PSP: "Alpha"})
	got, err := txs.QueryTransactions(ctx, repository.TransactionFilter{PSP: " alpha"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	allocs := NewAllocationStore()
	_, err = allocs.UpsertAllocation(ctx, jan15, "Alpha", decimal.NewFromInt(300))
	require.NoError(t, err)
	list, err := allocs.ListAllocations(ctx, repository.AllocationFilter{PSP: "ALPHA"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rates := NewCommissionRateStore(domain.CommissionRate{PSPName: "Alpha", Rate: decimal.RequireFromString("0.075"), IsActive: true})
	r, err := rates.GetCommissionRate(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", r.PSPName)
}
