package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/infra/inmemory"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transactionsCSV = `Date,PSP,Category,Client,Currency,Amount,Commission,Net,Notes
2025-01-15,Alpha,DEP,ACME,TL,1000,,,first
2025-01-15,Alpha,WD,ACME,TL,-200,,,
15.01.2025,Beta,dep,Globex,usd,500,10,490,

2025-01-16,,DEP,,TL,abc,,,
`

type mockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *mockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.FetchFromGCSFunc(ctx, gcsURI)
}

func (m *mockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return filepath.Base(uri)
}

type mockTransactionRepo struct {
	InsertTransactionsFunc func(ctx context.Context, txs []domain.Transaction) error
}

func (m *mockTransactionRepo) QueryTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	return nil, nil
}

func (m *mockTransactionRepo) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	return m.InsertTransactionsFunc(ctx, txs)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func assertDecimal(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "want %s, got null", want)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "want %s, got %s", want, got.Decimal)
}

func newImporter(storage StorageService, txs repository.TransactionRepository) (*Importer, *inmemory.AllocationStore) {
	allocs := inmemory.NewAllocationStore()
	rates := inmemory.NewCommissionRateStore(domain.CommissionRate{PSPName: "Alpha", Rate: decimal.RequireFromString("0.075"), IsActive: true})
	return NewImporter(storage, txs, allocs, rates, zerolog.Nop()), allocs
}

func TestImportTransactions_FillCommission(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewTransactionStore()
	im, _ := newImporter(nil, store)

	report, err := im.ImportTransactions(ctx, writeFile(t, "txs.csv", transactionsCSV), TransactionOptions{FillCommission: true})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Rows, "blank lines are not rows")
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.CommissionFilled)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, 6, report.Rejected[0].Line)

	fields := make([]string, 0, len(report.Rejected[0].Errors))
	for _, e := range report.Rejected[0].Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"client_name", "amount"}, fields)

	txs, err := store.QueryTransactions(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	byPSP := map[string][]domain.Transaction{}
	for _, tx := range txs {
		byPSP[tx.PSP] = append(byPSP[tx.PSP], tx)
	}

	for _, tx := range byPSP["Alpha"] {
		switch tx.Category {
		case domain.CategoryDeposit:
			assertDecimal(t, "75", tx.Commission)
			assertDecimal(t, "925", tx.NetAmount)
		case domain.CategoryWithdrawal:
			assertDecimal(t, "0", tx.Commission)
			assertDecimal(t, "-200", tx.NetAmount)
		}
	}

	beta := byPSP["Beta"][0]
	assert.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 15}, beta.Date)
	assert.Equal(t, "USD", beta.Currency)
	assert.Equal(t, domain.CategoryDeposit, beta.Category)
	assertDecimal(t, "10", beta.Commission)
	assertDecimal(t, "490", beta.NetAmount)
}

func TestImportTransactions_WithoutFill(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewTransactionStore()
	im, _ := newImporter(nil, store)

	report, err := im.ImportTransactions(ctx, writeFile(t, "txs.csv", transactionsCSV), TransactionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.CommissionFilled)

	txs, err := store.QueryTransactions(ctx, repository.TransactionFilter{PSP: "Alpha"})
	require.NoError(t, err)
	for _, tx := range txs {
		assert.False(t, tx.Commission.Valid)
		assertDecimal(t, tx.Amount.Decimal.String(), tx.NetAmount)
	}
}

func TestImportTransactions_DryRunFromGCS(t *testing.T) {
	var fetched string
	storage := &mockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			fetched = gcsURI
			return []byte(transactionsCSV), nil
		},
	}
	repo := &mockTransactionRepo{
		InsertTransactionsFunc: func(ctx context.Context, txs []domain.Transaction) error {
			t.Fatal("dry run must not insert")
			return nil
		},
	}
	im, _ := newImporter(storage, repo)

	report, err := im.ImportTransactions(context.Background(), "gs://imports/2025/01/txs.csv", TransactionOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "gs://imports/2025/01/txs.csv", fetched)
	assert.True(t, report.DryRun)
	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 1, report.Skipped)
}

func TestImportTransactions_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing columns", func(t *testing.T) {
		im, _ := newImporter(nil, inmemory.NewTransactionStore())
		_, err := im.ImportTransactions(ctx, writeFile(t, "bad.csv", "date,psp\n2025-01-15,Alpha\n"), TransactionOptions{})
		assert.ErrorContains(t, err, "amount, client_name, currency")
	})

	t.Run("empty file", func(t *testing.T) {
		im, _ := newImporter(nil, inmemory.NewTransactionStore())
		_, err := im.ImportTransactions(ctx, writeFile(t, "empty.csv", ""), TransactionOptions{})
		assert.ErrorContains(t, err, "empty file")
	})

	t.Run("gcs without storage", func(t *testing.T) {
		im, _ := newImporter(nil, inmemory.NewTransactionStore())
		_, err := im.ImportTransactions(ctx, "gs://imports/txs.csv", TransactionOptions{})
		assert.ErrorContains(t, err, "no storage service")
	})

	t.Run("insert failure", func(t *testing.T) {
		repo := &mockTransactionRepo{
			InsertTransactionsFunc: func(ctx context.Context, txs []domain.Transaction) error {
				return errors.New("bigquery: streaming insert failed")
			},
		}
		im, _ := newImporter(nil, repo)
		_, err := im.ImportTransactions(ctx, writeFile(t, "txs.csv", transactionsCSV), TransactionOptions{})
		assert.ErrorContains(t, err, "streaming insert failed")
	})
}

func TestImportAllocations(t *testing.T) {
	ctx := context.Background()
	im, allocs := newImporter(nil, inmemory.NewTransactionStore())

	csv := "date,psp_name,allocation_amount\n" +
		"2025-01-15,Alpha,300\n" +
		"2025-01-15,Alpha,250\n" +
		"2025-13-01,Alpha,5\n" +
		"2025-01-16,,5\n" +
		"2025-01-16,Beta,lots\n"

	report, err := im.ImportAllocations(ctx, writeFile(t, "allocs.csv", csv), false)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 3, report.Skipped)

	stored, err := allocs.ListAllocations(ctx, repository.AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Alpha", stored[0].PSPName)
	assert.True(t, decimal.NewFromInt(250).Equal(stored[0].Amount), "last row wins")
}
