package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/analytics"
	"github.com/dvloznov/psp-ledger/internal/cache"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/infra/inmemory"
	"github.com/dvloznov/psp-ledger/internal/jobs"
	jobsmem "github.com/dvloznov/psp-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/dvloznov/psp-ledger/internal/reporting"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan15 = civil.Date{Year: 2025, Month: 1, Day: 15}

func nd(s string) decimal.NullDecimal {
	return domain.NewNullDecimal(decimal.RequireFromString(s))
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func seedTransactions() *inmemory.TransactionStore {
	created := time.Now().UTC().Add(-time.Hour)
	return inmemory.NewTransactionStore(
		domain.Transaction{ID: "1", Date: jan15, PSP: "Alpha", Category: domain.CategoryDeposit, Amount: nd("1000"), Commission: nd("0"), NetAmount: nd("1000"), ClientName: "ACME", CreatedAt: created},
		domain.Transaction{ID: "2", Date: jan15, PSP: "Alpha", Category: domain.CategoryWithdrawal, Amount: nd("-200"), Commission: nd("0"), NetAmount: nd("-200"), ClientName: "ACME", CreatedAt: created},
	)
}

func newLedgerHandler(t *testing.T, txs repository.TransactionRepository) (*LedgerHandler, *cache.LRU) {
	t.Helper()
	c := cache.NewLRU(16, time.Minute)
	svc := reporting.NewService(txs, inmemory.NewAllocationStore(), inmemory.NewCommissionRateStore(), zerolog.Nop())
	return NewLedgerHandler(svc, c, zerolog.Nop()), c
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeLedger(t *testing.T, rec *httptest.ResponseRecorder) LedgerResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LedgerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestGetLedger_CacheAndInvalidation(t *testing.T) {
	h, _ := newLedgerHandler(t, seedTransactions())

	rec := do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	resp := decodeLedger(t, rec)
	require.Equal(t, 1, resp.TotalDays)
	assert.Equal(t, "All available data (no date restriction)", resp.Period)
	assert.Nil(t, resp.ValidationErrors)
	assertDecimal(t, "800", resp.LedgerData[0].PSPs[0].Rollover)

	rec = do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = do(h.SetAllocation, http.MethodPost, "/api/ledger/allocations", `{"date":"2025-01-15","psp":"Alpha","allocation":300}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), "allocation update invalidates the ledger")
	resp = decodeLedger(t, rec)
	entry := resp.LedgerData[0].PSPs[0]
	assertDecimal(t, "300", entry.Allocation)
	assertDecimal(t, "500", entry.Rollover)
	assertDecimal(t, "500", resp.LedgerData[0].CarryOverTotal)
}

func TestGetLedger_DateRange(t *testing.T) {
	h, _ := newLedgerHandler(t, seedTransactions())

	resp := decodeLedger(t, do(h.GetLedger, http.MethodGet, "/api/ledger?start_date=2025-02-01&end_date=2025-02-28", ""))
	assert.Equal(t, 0, resp.TotalDays)
	assert.NotNil(t, resp.LedgerData)
	assert.Equal(t, "2025-02-01 to 2025-02-28", resp.Period)

	tests := []string{
		"/api/ledger?start_date=01-02-2025",
		"/api/ledger?end_date=tomorrow",
		"/api/ledger?start_date=2025-03-01&end_date=2025-02-01",
	}
	for _, target := range tests {
		rec := do(h.GetLedger, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

type mockTransactionRepo struct {
	QueryTransactionsFunc func(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error)
}

func (m *mockTransactionRepo) QueryTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	return m.QueryTransactionsFunc(ctx, filter)
}

func (m *mockTransactionRepo) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	return errors.New("not implemented")
}

func TestGetLedger_RepositoryError(t *testing.T) {
	repo := &mockTransactionRepo{
		QueryTransactionsFunc: func(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
			return nil, errors.New("bigquery: quota exceeded")
		},
	}
	h, c := newLedgerHandler(t, repo)

	rec := do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to retrieve ledger data"}`, rec.Body.String())
	assert.Equal(t, 0, c.Len(), "errors are not cached")
}

func TestGetRolloverSummary(t *testing.T) {
	h, _ := newLedgerHandler(t, seedTransactions())

	rec := do(h.GetRolloverSummary, http.MethodGet, "/api/ledger/rollover-summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RolloverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.TotalPSPs)
	assert.Equal(t, "Alpha", resp.PSPSummary[0].PSP)
	assertDecimal(t, "800", resp.PSPSummary[0].NetTotal)
}

func TestSetAllocation_BadRequests(t *testing.T) {
	h, _ := newLedgerHandler(t, seedTransactions())

	tests := map[string]string{
		"not json":     `{`,
		"missing psp":  `{"date":"2025-01-15","allocation":1}`,
		"missing date": `{"psp":"Alpha","allocation":1}`,
		"bad date":     `{"date":"15.01.2025","psp":"Alpha","allocation":1}`,
		"bad amount":   `{"date":"2025-01-15","psp":"Alpha","allocation":"lots"}`,
	}
	for name, body := range tests {
		rec := do(h.SetAllocation, http.MethodPost, "/api/ledger/allocations", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestGetPSPPeriod(t *testing.T) {
	h, _ := newLedgerHandler(t, seedTransactions())

	rec := do(h.GetPSPPeriod, http.MethodGet, "/api/ledger/psp-period?psp=Alpha&start_date=2025-01-01&end_date=2025-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"psp":"Alpha"`)

	rec = do(h.GetPSPPeriod, http.MethodGet, "/api/ledger/psp-period?start_date=2025-01-01&end_date=2025-01-31", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportLedger(t *testing.T) {
	h, _ := newLedgerHandler(t, seedTransactions())

	rec := do(h.ExportLedger, http.MethodGet, "/api/ledger/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gcsuploader.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestAnalytics(t *testing.T) {
	svc := analytics.NewService(seedTransactions(), nil, zerolog.Nop())
	h := NewAnalyticsHandler(svc, cache.NewLRU(16, time.Minute), zerolog.Nop())

	rec := do(h.DashboardStats, http.MethodGet, "/api/analytics/dashboard-stats?range=30d", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats analytics.DashboardStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, analytics.Range30d, stats.Range)
	assert.Equal(t, 2, stats.Summary.TransactionCount)

	rec = do(h.DashboardStats, http.MethodGet, "/api/analytics/dashboard-stats?range=30d", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	for _, fn := range []http.HandlerFunc{h.RevenueTrends, h.VolumeAnalysis, h.ClientSegmentation, h.CommissionAnalytics, h.Recommendations} {
		rec := do(fn, http.MethodGet, "/api/analytics/x", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = do(h.RevenueTrends, http.MethodGet, "/api/analytics/revenue-trends?range=1y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobsHandler(t *testing.T) {
	ctx := context.Background()
	store := jobsmem.NewStore()
	require.NoError(t, store.SaveJob(ctx, &jobs.ExportLedgerJob{JobID: "j1", PSP: "Alpha", Status: jobs.JobStatusCompleted}))
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil), "j1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job_id":"j1"`)

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil), "missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h.ListJobs, http.MethodGet, "/api/jobs?psp=alpha&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

type mockPublisher struct {
	PublishExportLedgerFunc func(ctx context.Context, job *jobs.ExportLedgerJob) error
}

func (m *mockPublisher) PublishExportLedger(ctx context.Context, job *jobs.ExportLedgerJob) error {
	return m.PublishExportLedgerFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

func TestCreateExport(t *testing.T) {
	var published *jobs.ExportLedgerJob
	pub := &mockPublisher{
		PublishExportLedgerFunc: func(ctx context.Context, job *jobs.ExportLedgerJob) error {
			job.JobID = "job-1"
			job.Status = jobs.JobStatusPending
			published = job
			return nil
		},
	}
	h := NewExportsHandler(pub, "ledger-exports", zerolog.Nop())

	rec := do(h.CreateExport, http.MethodPost, "/api/exports", `{"start_date":"2025-01-01","end_date":"2025-01-31","psp":" Alpha "}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"job_id":"job-1","status":"pending"}`, rec.Body.String())
	require.NotNil(t, published)
	assert.Equal(t, "Alpha", published.PSP)
	assert.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 31}, published.EndDate)

	rec = do(h.CreateExport, http.MethodPost, "/api/exports", `{"start_date":"2025-02-01","end_date":"2025-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.CreateExport, http.MethodPost, "/api/exports", `{"start_date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := NewExportsHandler(pub, "", zerolog.Nop())
	rec = do(disabled.CreateExport, http.MethodPost, "/api/exports", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheHandler_Clear(t *testing.T) {
	c := cache.NewLRU(16, time.Minute)
	require.NoError(t, c.Set(context.Background(), cache.NamespaceLedger, "k", []byte("v")))

	rec := do(NewCacheHandler(c, zerolog.Nop()).Clear, http.MethodDelete, "/api/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, c.Len())
}

func TestMethodHandler(t *testing.T) {
	h := MethodHandler{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetLedger_InvalidationDuringBuildIsNotCached(t *testing.T) {
	store := seedTransactions()
	var c *cache.LRU
	invalidate := true
	repo := &mockTransactionRepo{
		QueryTransactionsFunc: func(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
			txs, err := store.QueryTransactions(ctx, filter)
			if invalidate {
				// An allocation write lands after the read but before the result is cached.
				invalidate = false
				require.NoError(t, c.DeleteNamespace(ctx, cache.NamespaceLedger))
			}
			return txs, err
		},
	}
	h, c := newLedgerHandler(t, repo)

	rec := do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), "result built across an invalidation is not served")

	rec = do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

type mockCache struct {
	GetFunc             func(ctx context.Context, namespace, key string) ([]byte, bool, error)
	SetFunc             func(ctx context.Context, namespace, key string, value []byte) error
	GenerationFunc      func(ctx context.Context, namespace string) (string, error)
	DeleteNamespaceFunc func(ctx context.Context, namespace string) error
	ClearFunc           func(ctx context.Context) error
}

func (m *mockCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	return m.GetFunc(ctx, namespace, key)
}

func (m *mockCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	return m.SetFunc(ctx, namespace, key, value)
}

func (m *mockCache) Generation(ctx context.Context, namespace string) (string, error) {
	return m.GenerationFunc(ctx, namespace)
}

func (m *mockCache) DeleteNamespace(ctx context.Context, namespace string) error {
	return m.DeleteNamespaceFunc(ctx, namespace)
}

func (m *mockCache) Clear(ctx context.Context) error {
	return m.ClearFunc(ctx)
}

func TestGetLedger_GenerationErrorSkipsCache(t *testing.T) {
	c := &mockCache{
		GenerationFunc: func(ctx context.Context, namespace string) (string, error) {
			return "", errors.New("redis: connection refused")
		},
		GetFunc: func(ctx context.Context, namespace, key string) ([]byte, bool, error) {
			t.Fatal("Get called without a generation")
			return nil, false, nil
		},
		SetFunc: func(ctx context.Context, namespace, key string, value []byte) error {
			t.Fatal("Set called without a generation")
			return nil
		},
	}
	svc := reporting.NewService(seedTransactions(), inmemory.NewAllocationStore(), inmemory.NewCommissionRateStore(), zerolog.Nop())
	h := NewLedgerHandler(svc, c, zerolog.Nop())

	rec := do(h.GetLedger, http.MethodGet, "/api/ledger", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	resp := decodeLedger(t, rec)
	assertDecimal(t, "800", resp.LedgerData[0].PSPs[0].Rollover)
}
