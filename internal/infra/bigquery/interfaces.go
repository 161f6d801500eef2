package bigquery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/google/uuid"
)

// BigQueryTransactionRepository is the concrete implementation of
// repository.TransactionRepository that reads and writes the BigQuery transactions
// table. It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type BigQueryTransactionRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

// NewBigQueryTransactionRepository creates a repository with a new shared client.
func NewBigQueryTransactionRepository(ctx context.Context, ds Dataset) (*BigQueryTransactionRepository, error) {
	if ds.ProjectID == "" || ds.DatasetID == "" {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: creating client: %w", err)
	}
	return &BigQueryTransactionRepository{
		client:  client,
		dataset: ds,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryTransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// QueryTransactions delegates to QueryTransactionsWithClient and converts the rows.
func (r *BigQueryTransactionRepository) QueryTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	rows, err := QueryTransactionsWithClient(ctx, r.client, r.dataset, filter)
	if err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.ToDomain())
	}
	if filter.Limit > 0 {
		sort.SliceStable(txs, func(i, j int) bool {
			if txs[i].Date != txs[j].Date {
				return txs[i].Date.Before(txs[j].Date)
			}
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		})
	}
	return txs, nil
}

// InsertTransactions assigns missing IDs and timestamps and delegates to InsertTransactionsWithClient.
func (r *BigQueryTransactionRepository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	now := time.Now().UTC()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		rows = append(rows, TransactionRowFromDomain(tx))
	}
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

var _ repository.TransactionRepository = (*BigQueryTransactionRepository)(nil)
