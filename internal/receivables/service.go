package receivables

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ardash/internal/platform/httpx"
)

// Store defines the data access used by Service.
type Store interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	InsertPayment(ctx context.Context, p PaymentInput) (int64, error)
	InsertPayments(ctx context.Context, payments []PaymentInput) (int64, error)
	KPITotals(ctx context.Context, filter KPIFilter) (KPITotals, error)
	KPICounts(ctx context.Context, filter KPIFilter, today time.Time) (KPICounts, error)
	TopCustomers(ctx context.Context, filter TopCustomersFilter) ([]TopCustomer, error)
	Monthly(ctx context.Context, rng DateRange) ([]MonthlyPoint, error)
}

// Service derives receivables reports from the store.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds a Service.
func NewService(store Store) *Service {
	return &Service{store: store, validate: newValidator(), now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// WithClock overrides the clock used to decide what is overdue.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListCustomers returns all customers.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.store.ListCustomers(ctx)
}

// ListInvoices returns the filtered invoices with their overdue flag set.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}
	today := s.now()
	for i := range invoices {
		invoices[i].Overdue = IsOverdue(invoices[i].Outstanding, invoices[i].DueDate, today)
	}
	return invoices, nil
}

// RecordPayment validates req and stores it, returning the new payment id.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (int64, error) {
	input, err := validatePayment(s.validate, req)
	if err != nil {
		return 0, err
	}
	return s.store.InsertPayment(ctx, input)
}

// RecordPayments validates every request before storing any of them in a
// single transaction.
func (s *Service) RecordPayments(ctx context.Context, reqs []PaymentRequest) (int64, error) {
	if len(reqs) == 0 {
		return 0, httpx.Validation(MsgBatchEmpty)
	}
	inputs := make([]PaymentInput, 0, len(reqs))
	for _, req := range reqs {
		input, err := validatePayment(s.validate, req)
		if err != nil {
			return 0, err
		}
		inputs = append(inputs, input)
	}
	return s.store.InsertPayments(ctx, inputs)
}

// KPISummary computes totals and the overdue percentage for filter.
func (s *Service) KPISummary(ctx context.Context, filter KPIFilter) (KPISummary, error) {
	totals, err := s.store.KPITotals(ctx, filter)
	if err != nil {
		return KPISummary{}, err
	}
	counts, err := s.store.KPICounts(ctx, filter, s.now())
	if err != nil {
		return KPISummary{}, err
	}
	return KPISummary{
		TotalInvoiced:    totals.Invoiced,
		TotalReceived:    totals.Received,
		TotalOutstanding: totals.Outstanding,
		TotalInvoices:    counts.Invoices,
		OverdueInvoices:  counts.Overdue,
		PercentOverdue:   PercentOf(counts.Overdue, counts.Invoices),
	}, nil
}

// PercentOf returns part/total*100 rounded to two decimals, or zero when
// total is zero.
func PercentOf(part, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 2)
}

// TopCustomers ranks customers by positive outstanding balance.
func (s *Service) TopCustomers(ctx context.Context, filter TopCustomersFilter) ([]TopCustomer, error) {
	customers, err := s.store.TopCustomers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}
	return customers, nil
}

// Monthly returns the invoiced vs received series.
func (s *Service) Monthly(ctx context.Context, rng DateRange) ([]MonthlyPoint, error) {
	return s.store.Monthly(ctx, rng)
}
