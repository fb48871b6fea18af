package receivables

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/ardash/internal/platform/httpx"
	"github.com/odyssey-erp/ardash/internal/platform/sqlb"
	"github.com/odyssey-erp/ardash/internal/shared"
)

// Header names for payment replay protection.
const (
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"
)

const (
	msgCustomerIDInvalid  = "customer_id must be an integer"
	msgLimitInvalid       = "limit must be an integer"
	msgInvalidBody        = "invalid JSON body"
	msgIdempotencyKey     = "Idempotency-Key must be a UUID"
	msgIdempotencyPending = "request with this Idempotency-Key is in progress"
)

// IdempotencyStore remembers completed write requests by key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (*shared.StoredResponse, error)
	Complete(ctx context.Context, scope, key string, resp shared.StoredResponse) error
	Release(ctx context.Context, scope, key string) error
}

// Handler exposes the receivables reports as JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	idem    IdempotencyStore
}

// NewHandler builds a Handler. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idem: idem}
}

// MountRoutes registers the report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.listCustomers)
	r.Get("/invoices", h.listInvoices)
	r.Get("/invoices/export.csv", h.exportInvoices)
	r.Post("/payments", h.recordPayment)
	r.Post("/payments/batch", h.recordPayments)
	r.Get("/kpis", h.kpis)
	r.Get("/top-customers", h.topCustomers)
	r.Get("/monthly", h.monthly)
}

type customerResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type invoiceResponse struct {
	ID           int64   `json:"id"`
	InvoiceNo    string  `json:"invoice_no"`
	CustomerName string  `json:"customer_name"`
	InvoiceDate  *string `json:"invoice_date"`
	DueDate      *string `json:"due_date"`
	AmountTotal  float64 `json:"amount_total"`
	Status       string  `json:"status"`
	Outstanding  float64 `json:"outstanding"`
	Overdue      bool    `json:"overdue"`
}

type kpiResponse struct {
	TotalInvoiced    float64 `json:"totalInvoiced"`
	TotalReceived    float64 `json:"totalReceived"`
	TotalOutstanding float64 `json:"totalOutstanding"`
	PercentOverdue   float64 `json:"percentOverdue"`
}

type topCustomerResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Outstanding float64 `json:"outstanding"`
}

type monthlyResponse struct {
	Month    string  `json:"month"`
	Invoiced float64 `json:"invoiced"`
	Received float64 `json:"received"`
}

type paymentResponse struct {
	OK        bool  `json:"ok"`
	PaymentID int64 `json:"payment_id"`
}

type batchResponse struct {
	OK       bool  `json:"ok"`
	Inserted int64 `json:"inserted"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, "list customers", err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, customerResponse{ID: c.ID, Name: c.Name})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, ok := h.loadInvoices(w, r)
	if !ok {
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, invoiceResponse{
			ID:           inv.ID,
			InvoiceNo:    inv.InvoiceNo,
			CustomerName: inv.CustomerName,
			InvoiceDate:  formatDate(inv.InvoiceDate),
			DueDate:      formatDate(inv.DueDate),
			AmountTotal:  inv.AmountTotal.InexactFloat64(),
			Status:       inv.Status,
			Outstanding:  inv.Outstanding.InexactFloat64(),
			Overdue:      inv.Overdue,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) exportInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, ok := h.loadInvoices(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.csv"`)
	if err := WriteInvoicesCSV(w, invoices); err != nil {
		h.logger.Error("write invoices csv", slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
	}
}

func (h *Handler) loadInvoices(w http.ResponseWriter, r *http.Request) ([]Invoice, bool) {
	q := r.URL.Query()
	customerID, err := parseCustomerID(q.Get("customer_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	invoices, err := h.service.ListInvoices(r.Context(), InvoiceFilter{
		CustomerID: customerID,
		Query:      strings.TrimSpace(q.Get("q")),
		Range:      parseRange(r),
		Sort:       q.Get("sort"),
		Order:      sqlb.ParseDirection(q.Get("order")),
	})
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return nil, false
	}
	return invoices, true
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	h.idempotent(w, r, "payments", func(ctx context.Context) (int, any, error) {
		id, err := h.service.RecordPayment(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, paymentResponse{OK: true, PaymentID: id}, nil
	})
}

func (h *Handler) recordPayments(w http.ResponseWriter, r *http.Request) {
	var reqs []PaymentRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	h.idempotent(w, r, "payments_batch", func(ctx context.Context) (int, any, error) {
		n, err := h.service.RecordPayments(ctx, reqs)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, batchResponse{OK: true, Inserted: n}, nil
	})
}

func (h *Handler) kpis(w http.ResponseWriter, r *http.Request) {
	customerID, err := parseCustomerID(r.URL.Query().Get("customer_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.KPISummary(r.Context(), KPIFilter{CustomerID: customerID, Range: parseRange(r)})
	if err != nil {
		h.fail(w, r, "kpi summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, kpiResponse{
		TotalInvoiced:    summary.TotalInvoiced.InexactFloat64(),
		TotalReceived:    summary.TotalReceived.InexactFloat64(),
		TotalOutstanding: summary.TotalOutstanding.InexactFloat64(),
		PercentOverdue:   summary.PercentOverdue.InexactFloat64(),
	})
}

func (h *Handler) topCustomers(w http.ResponseWriter, r *http.Request) {
	limit := DefaultTopCustomersLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, msgLimitInvalid)
			return
		}
		limit = n
	}
	customers, err := h.service.TopCustomers(r.Context(), TopCustomersFilter{Range: parseRange(r), Limit: limit})
	if err != nil {
		h.fail(w, r, "top customers", err)
		return
	}
	out := make([]topCustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, topCustomerResponse{ID: c.ID, Name: c.Name, Outstanding: c.Outstanding.InexactFloat64()})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.Monthly(r.Context(), parseRange(r))
	if err != nil {
		h.fail(w, r, "monthly series", err)
		return
	}
	out := make([]monthlyResponse, 0, len(points))
	for _, p := range points {
		out = append(out, monthlyResponse{
			Month:    p.Month.Format(DateLayout),
			Invoiced: p.Invoiced.InexactFloat64(),
			Received: p.Received.InexactFloat64(),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// idempotent runs fn once per Idempotency-Key. Without a key or a store it
// simply runs fn.
func (h *Handler) idempotent(w http.ResponseWriter, r *http.Request, scope string, fn func(context.Context) (int, any, error)) {
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" || h.idem == nil {
		status, body, err := fn(ctx)
		if err != nil {
			h.fail(w, r, scope, err)
			return
		}
		httpx.JSON(w, status, body)
		return
	}

	stored, err := h.idem.Reserve(ctx, scope, key)
	switch {
	case errors.Is(err, shared.ErrIdempotencyKeyInvalid):
		httpx.Error(w, http.StatusBadRequest, msgIdempotencyKey)
		return
	case errors.Is(err, shared.ErrIdempotencyInProgress):
		httpx.Error(w, http.StatusConflict, msgIdempotencyPending)
		return
	case err != nil:
		h.fail(w, r, "reserve idempotency key", err)
		return
	}
	if stored != nil {
		w.Header().Set(HeaderIdempotentReplayed, "true")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
		return
	}

	status, body, err := fn(ctx)
	if err != nil {
		if relErr := h.idem.Release(ctx, scope, key); relErr != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", relErr), slog.String("key", key))
		}
		h.fail(w, r, scope, err)
		return
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		h.fail(w, r, "encode response", err)
		return
	}
	if err := h.idem.Complete(ctx, scope, key, shared.StoredResponse{Status: status, Body: buf.Bytes()}); err != nil {
		h.logger.Warn("complete idempotency key", slog.Any("error", err), slog.String("key", key))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fail logs server-side failures and writes the mapped error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
	}
	httpx.RespondError(w, err)
}

func parseCustomerID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, httpx.Validation(msgCustomerIDInvalid)
	}
	return &id, nil
}

func parseRange(r *http.Request) DateRange {
	q := r.URL.Query()
	return DateRange{From: ParseDate(q.Get("from")), To: ParseDate(q.Get("to"))}
}
