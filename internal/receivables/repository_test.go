package receivables

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ardash/internal/platform/db"
)

type execCall struct {
	sql  string
	args []pgx.NamedArgs
}

type recordingExecutor struct {
	rows    []map[string]any
	result  db.Result
	err     error
	queries []execCall
	execs   []execCall
}

func (e *recordingExecutor) Query(_ context.Context, sql string, args pgx.NamedArgs) ([]map[string]any, error) {
	e.queries = append(e.queries, execCall{sql: sql, args: []pgx.NamedArgs{args}})
	return e.rows, e.err
}

func (e *recordingExecutor) Exec(_ context.Context, sql string, args ...pgx.NamedArgs) (db.Result, error) {
	e.execs = append(e.execs, execCall{sql: sql, args: args})
	return e.result, e.err
}

func numeric(v int64, exp int32) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(v), Exp: exp, Valid: true}
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestListInvoicesWithoutFiltersAddsNoWhere(t *testing.T) {
	exec := &recordingExecutor{}
	repo := NewRepository(exec)

	_, err := repo.ListInvoices(context.Background(), InvoiceFilter{Order: "ASC"})
	require.NoError(t, err)
	require.Len(t, exec.queries, 1)
	q := exec.queries[0]
	assert.NotContains(t, q.sql, "WHERE")
	assert.Contains(t, q.sql, "ORDER BY i.invoice_date ASC, i.id ASC")
	assert.Empty(t, q.args[0])
}

func TestListInvoicesBindsEveryFilter(t *testing.T) {
	exec := &recordingExecutor{}
	repo := NewRepository(exec)
	cid := int64(3)
	from, to := day("2024-01-01"), day("2024-03-31")

	_, err := repo.ListInvoices(context.Background(), InvoiceFilter{
		CustomerID: &cid,
		Query:      "50%_off",
		Range:      DateRange{From: &from, To: &to},
		Sort:       SortOutstanding,
		Order:      "DESC",
	})
	require.NoError(t, err)
	q := exec.queries[0]
	assert.Contains(t, q.sql, "WHERE i.customer_id = @customer_id AND i.invoice_date >= @date_from AND i.invoice_date <= @date_to AND (i.invoice_no ILIKE @q OR c.name ILIKE @q)")
	assert.Contains(t, q.sql, "ORDER BY outstanding DESC, i.id DESC")
	assert.Equal(t, pgx.NamedArgs{
		"customer_id": int64(3),
		"date_from":   from,
		"date_to":     to,
		"q":           `%50\%\_off%`,
	}, q.args[0])
}

func TestListInvoicesUnknownSortFallsBackToInvoiceDate(t *testing.T) {
	bogus := &recordingExecutor{}
	explicit := &recordingExecutor{}

	_, err := NewRepository(bogus).ListInvoices(context.Background(), InvoiceFilter{Sort: "bogus; DROP TABLE invoices", Order: "ASC"})
	require.NoError(t, err)
	_, err = NewRepository(explicit).ListInvoices(context.Background(), InvoiceFilter{Sort: SortInvoiceDate, Order: "ASC"})
	require.NoError(t, err)

	assert.Equal(t, explicit.queries[0].sql, bogus.queries[0].sql)
	assert.NotContains(t, bogus.queries[0].sql, "DROP")
}

func TestListInvoicesCoercesRows(t *testing.T) {
	exec := &recordingExecutor{rows: []map[string]any{{
		"id":            int64(9),
		"invoice_no":    "INV-009",
		"customer_name": "Acme",
		"invoice_date":  day("2024-02-01"),
		"due_date":      nil,
		"amount_total":  numeric(10000, -2),
		"status":        "open",
		"outstanding":   numeric(-500, -2),
	}}}

	invoices, err := NewRepository(exec).ListInvoices(context.Background(), InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	inv := invoices[0]
	assert.Equal(t, int64(9), inv.ID)
	assert.Equal(t, "Acme", inv.CustomerName)
	assert.Nil(t, inv.DueDate)
	assert.True(t, decimal.NewFromInt(100).Equal(inv.AmountTotal))
	assert.True(t, decimal.RequireFromString("-5").Equal(inv.Outstanding))
}

func TestInsertPaymentReturnsGeneratedID(t *testing.T) {
	exec := &recordingExecutor{result: db.Result{RowsAffected: 1, LastInsertID: 42}}
	id, err := NewRepository(exec).InsertPayment(context.Background(), PaymentInput{
		InvoiceID:   7,
		Amount:      decimal.RequireFromString("40.00"),
		PaymentDate: day("2024-01-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.Len(t, exec.execs, 1)
	assert.Contains(t, exec.execs[0].sql, "RETURNING id")
	assert.Equal(t, pgx.NamedArgs{"invoice_id": int64(7), "amount": "40", "payment_date": day("2024-01-15")}, exec.execs[0].args[0])
}

func TestInsertPaymentsSendsOneBatch(t *testing.T) {
	exec := &recordingExecutor{result: db.Result{RowsAffected: 2}}
	n, err := NewRepository(exec).InsertPayments(context.Background(), []PaymentInput{
		{InvoiceID: 1, Amount: decimal.NewFromInt(10), PaymentDate: day("2024-01-01")},
		{InvoiceID: 2, Amount: decimal.NewFromInt(20), PaymentDate: day("2024-01-02")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, exec.execs, 1)
	assert.Len(t, exec.execs[0].args, 2)
}

func TestKPICountsBindsToday(t *testing.T) {
	exec := &recordingExecutor{rows: []map[string]any{{"total_invoices": int64(4), "overdue_invoices": int64(1)}}}
	today := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

	counts, err := NewRepository(exec).KPICounts(context.Background(), KPIFilter{}, today)
	require.NoError(t, err)
	assert.Equal(t, KPICounts{Invoices: 4, Overdue: 1}, counts)
	assert.Equal(t, day("2024-05-10"), exec.queries[0].args[0]["today"])
	assert.Contains(t, exec.queries[0].sql, "i.due_date < @today")
}

func TestKPITotalsWithNoRowsIsZero(t *testing.T) {
	exec := &recordingExecutor{}
	totals, err := NewRepository(exec).KPITotals(context.Background(), KPIFilter{})
	require.NoError(t, err)
	assert.True(t, totals.Invoiced.IsZero())
	assert.True(t, totals.Received.IsZero())
	assert.True(t, totals.Outstanding.IsZero())
}

func TestTopCustomersBindsLimitAndKeepsPositive(t *testing.T) {
	exec := &recordingExecutor{}
	_, err := NewRepository(exec).TopCustomers(context.Background(), TopCustomersFilter{Limit: 3})
	require.NoError(t, err)
	q := exec.queries[0]
	assert.Equal(t, 3, q.args[0]["limit"])
	assert.Contains(t, q.sql, "HAVING SUM(i.amount_total - COALESCE(p.paid, 0)) > 0")
	assert.Contains(t, q.sql, "ORDER BY outstanding DESC")
	assert.Contains(t, q.sql, "LIMIT @limit")
}

func TestMonthlyGroupsByInvoiceMonth(t *testing.T) {
	exec := &recordingExecutor{rows: []map[string]any{
		{"month": day("2024-01-01"), "invoiced": numeric(100, 0), "received": numeric(50, 0)},
	}}
	points, err := NewRepository(exec).Monthly(context.Background(), DateRange{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, day("2024-01-01"), points[0].Month)
	assert.True(t, decimal.NewFromInt(50).Equal(points[0].Received))
	// Payments join through the invoice, never by their own date.
	assert.Contains(t, exec.queries[0].sql, "date_trunc('month', i.invoice_date)")
	assert.NotContains(t, exec.queries[0].sql, "payment_date")
}

func TestRepositoryWrapsExecutorErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewRepository(&recordingExecutor{err: boom}).ListCustomers(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "receivables: list customers")
}
