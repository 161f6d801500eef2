package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// Dataset identifies the project and dataset holding the ledger tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// InsertTransactionsWithClient inserts a batch of TransactionRow into the transactions
// table using the provided BigQuery client.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	table := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// buildTransactionQuery renders the SELECT for filter and its named parameters.
func buildTransactionQuery(ds Dataset, filter repository.TransactionFilter) (string, []bigquery.QueryParameter) {
	var (
		where  []string
		params []bigquery.QueryParameter
	)

	if repository.IsSet(filter.StartDate) {
		where = append(where, "t.transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: filter.StartDate.String()})
	}
	if repository.IsSet(filter.EndDate) {
		where = append(where, "t.transaction_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: filter.EndDate.String()})
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "t.created_ts >= @created_from")
		params = append(params, bigquery.QueryParameter{Name: "created_from", Value: filter.CreatedFrom})
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "t.created_ts < @created_to")
		params = append(params, bigquery.QueryParameter{Name: "created_to", Value: filter.CreatedTo})
	}
	if filter.PSP != "" {
		where = append(where, "LOWER(TRIM(IFNULL(t.psp, ''))) = LOWER(@psp)")
		params = append(params, bigquery.QueryParameter{Name: "psp", Value: strings.TrimSpace(filter.PSP)})
	}

	var b strings.Builder
	b.WriteString(`
		SELECT
			t.transaction_id,
			t.transaction_date,
			t.psp,
			t.category,
			t.amount,
			t.commission,
			t.net_amount,
			t.amount_try,
			t.commission_try,
			t.net_amount_try,
			t.client_name,
			t.currency,
			t.payment_method,
			t.created_ts
		FROM `)
	b.WriteString(ds.table(transactionsTable))
	b.WriteString(" t\n")
	if len(where) > 0 {
		b.WriteString("\t\tWHERE ")
		b.WriteString(strings.Join(where, "\n\t\t  AND "))
		b.WriteString("\n")
	}
	if filter.Limit > 0 {
		b.WriteString("\t\tORDER BY t.created_ts DESC\n\t\tLIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	} else {
		b.WriteString("\t\tORDER BY t.transaction_date, t.created_ts")
	}

	return b.String(), params
}

// QueryTransactionsWithClient returns the transaction rows matching filter using the
// provided BigQuery client.
func QueryTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, filter repository.TransactionFilter) ([]*TransactionRow, error) {
	sql, params := buildTransactionQuery(ds, filter)
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
