package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ardash/internal/observability"
	"github.com/odyssey-erp/ardash/internal/receivables"
	"github.com/odyssey-erp/ardash/jobs"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type emptyStore struct{}

func (emptyStore) ListCustomers(context.Context) ([]receivables.Customer, error) {
	return []receivables.Customer{{ID: 1, Name: "Acme"}}, nil
}
func (emptyStore) ListInvoices(context.Context, receivables.InvoiceFilter) ([]receivables.Invoice, error) {
	return nil, nil
}
func (emptyStore) InsertPayment(context.Context, receivables.PaymentInput) (int64, error) {
	return 1, nil
}
func (emptyStore) InsertPayments(_ context.Context, ps []receivables.PaymentInput) (int64, error) {
	return int64(len(ps)), nil
}
func (emptyStore) KPITotals(context.Context, receivables.KPIFilter) (receivables.KPITotals, error) {
	return receivables.KPITotals{}, nil
}
func (emptyStore) KPICounts(context.Context, receivables.KPIFilter, time.Time) (receivables.KPICounts, error) {
	return receivables.KPICounts{}, nil
}
func (emptyStore) TopCustomers(context.Context, receivables.TopCustomersFilter) ([]receivables.TopCustomer, error) {
	return nil, nil
}
func (emptyStore) Monthly(context.Context, receivables.DateRange) ([]receivables.MonthlyPoint, error) {
	return nil, nil
}

func testConfig() *Config {
	return &Config{
		AppEnv:             "test",
		AppRequestTimeout:  5 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		RateLimitPerMinute: 2,
	}
}

func newTestRouter(cfg *Config, pool Pinger) (http.Handler, *observability.Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		ReceivablesHandler: receivables.NewHandler(logger, receivables.NewService(emptyStore{}), nil),
		JobHandler:         jobs.NewHandler(nil, logger),
		Metrics:            metrics,
	}), metrics
}

func get(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(testConfig(), stubPinger{})
	rr := get(router, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	router, _ = newTestRouter(testConfig(), stubPinger{err: errors.New("no route to host")})
	rr = get(router, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rr.Body.String())
}

func TestRouterServesAPIWithCORSAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(testConfig(), stubPinger{})
	rr := get(router, "/api/customers", map[string]string{"Origin": "http://dashboard.local"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Acme"}]`, rr.Body.String())
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodOptions, "/api/payments", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestRouterRateLimit(t *testing.T) {
	router, _ := newTestRouter(testConfig(), stubPinger{})
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, get(router, "/api/kpis", nil).Code)
	}
	rr := get(router, "/api/kpis", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rr.Body.String())
}

func TestRouterRecordsMetricsAndServesThem(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 0
	router, _ := newTestRouter(cfg, stubPinger{})
	get(router, "/api/monthly", nil)

	rr := get(router, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `ardash_http_requests_total{code="200",route="/api/monthly"} 1`)
}

func TestRouterJSONNotFound(t *testing.T) {
	router, _ := newTestRouter(testConfig(), nil)
	rr := get(router, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rr.Body.String())

	rr = get(router, "/jobs/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterLogsEachRequestOnceThroughSlog(t *testing.T) {
	var stdlib bytes.Buffer
	prev := middleware.DefaultLogger
	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.New(&stdlib, "", 0), NoColor: true})
	t.Cleanup(func() { middleware.DefaultLogger = prev })

	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             testConfig(),
		Pool:               stubPinger{},
		ReceivablesHandler: receivables.NewHandler(logger, receivables.NewService(emptyStore{}), nil),
		JobHandler:         jobs.NewHandler(nil, logger),
	})

	require.Equal(t, http.StatusOK, get(router, "/api/customers", nil).Code)

	assert.Empty(t, stdlib.String())
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte(`"msg":"http request"`)))
	assert.Contains(t, out.String(), `"path":"/api/customers"`)
	assert.Contains(t, out.String(), `"status":200`)
}
