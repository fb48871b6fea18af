package receivables

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ardash/internal/platform/sqlb"
)

// DateLayout is the wire format for every date the API accepts or emits.
const DateLayout = "2006-01-02"

// Sort keys accepted by the invoice listing.
const (
	SortInvoiceNo    = "invoice_no"
	SortCustomerName = "customer_name"
	SortInvoiceDate  = "invoice_date"
	SortDueDate      = "due_date"
	SortAmountTotal  = "amount_total"
	SortStatus       = "status"
	SortOutstanding  = "outstanding"
)

// DefaultTopCustomersLimit applies when the client does not send a limit.
const DefaultTopCustomersLimit = 5

// Customer is a billable party.
type Customer struct {
	ID   int64
	Name string
}

// Invoice is an invoice row joined with its customer and derived balances.
type Invoice struct {
	ID           int64
	InvoiceNo    string
	CustomerName string
	InvoiceDate  *time.Time
	DueDate      *time.Time
	AmountTotal  decimal.Decimal
	Status       string
	// Outstanding is the total minus all payments. It is negative when the
	// invoice has been overpaid.
	Outstanding decimal.Decimal
	Overdue     bool
}

// PaymentInput describes a payment to record.
type PaymentInput struct {
	InvoiceID   int64
	Amount      decimal.Decimal
	PaymentDate time.Time
}

// KPISummary aggregates the receivables position over a filtered invoice set.
type KPISummary struct {
	TotalInvoiced    decimal.Decimal
	TotalReceived    decimal.Decimal
	TotalOutstanding decimal.Decimal
	TotalInvoices    int64
	OverdueInvoices  int64
	PercentOverdue   decimal.Decimal
}

// KPITotals are the currency sums of a KPI summary.
type KPITotals struct {
	Invoiced    decimal.Decimal
	Received    decimal.Decimal
	Outstanding decimal.Decimal
}

// KPICounts are the invoice counts of a KPI summary.
type KPICounts struct {
	Invoices int64
	Overdue  int64
}

// TopCustomer is a customer ranked by outstanding balance.
type TopCustomer struct {
	ID          int64
	Name        string
	Outstanding decimal.Decimal
}

// MonthlyPoint holds invoiced and received sums for one calendar month.
type MonthlyPoint struct {
	Month    time.Time
	Invoiced decimal.Decimal
	Received decimal.Decimal
}

// DateRange bounds invoice_date inclusively. Nil bounds are not applied.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// InvoiceFilter scopes the invoice listing.
type InvoiceFilter struct {
	CustomerID *int64
	Query      string
	Range      DateRange
	Sort       string
	Order      sqlb.Direction
}

// KPIFilter scopes the KPI summary.
type KPIFilter struct {
	CustomerID *int64
	Range      DateRange
}

// TopCustomersFilter scopes the top debtor ranking.
type TopCustomersFilter struct {
	Range DateRange
	Limit int
}

// ParseDate parses a YYYY-MM-DD value. Empty or malformed input yields nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// IsOverdue reports whether an invoice with the given balance and due date is
// overdue on day today. A missing due date is never overdue.
func IsOverdue(outstanding decimal.Decimal, due *time.Time, today time.Time) bool {
	if due == nil || !outstanding.IsPositive() {
		return false
	}
	return calendarDay(*due).Before(calendarDay(today))
}

// calendarDay truncates t to its UTC date.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
