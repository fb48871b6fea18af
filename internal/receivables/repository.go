package receivables

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/ardash/internal/platform/db"
	"github.com/odyssey-erp/ardash/internal/platform/sqlb"
)

// Executor runs statements against the database.
type Executor interface {
	Query(ctx context.Context, sql string, args pgx.NamedArgs) ([]map[string]any, error)
	Exec(ctx context.Context, sql string, args ...pgx.NamedArgs) (db.Result, error)
}

// Repository provides PostgreSQL backed persistence for receivables reports.
type Repository struct {
	exec Executor
}

// NewRepository constructs a repository.
func NewRepository(exec Executor) *Repository {
	return &Repository{exec: exec}
}

// paidJoin attaches the per-invoice payment sum as p.paid.
const paidJoin = `LEFT JOIN (
	SELECT invoice_id, SUM(amount) AS paid
	FROM payments
	GROUP BY invoice_id
) p ON p.invoice_id = i.id`

const outstandingExpr = "i.amount_total - COALESCE(p.paid, 0)"

var invoiceOrder = sqlb.NewOrderBy(map[string]string{
	SortInvoiceNo:    "i.invoice_no",
	SortCustomerName: "c.name",
	SortInvoiceDate:  "i.invoice_date",
	SortDueDate:      "i.due_date",
	SortAmountTotal:  "i.amount_total",
	SortStatus:       "i.status",
	SortOutstanding:  "outstanding",
}, SortInvoiceDate)

func applyRange(w *sqlb.Where, r DateRange) {
	if r.From != nil {
		w.Add(sqlb.Gte("i.invoice_date", "date_from", *r.From))
	}
	if r.To != nil {
		w.Add(sqlb.Lte("i.invoice_date", "date_to", *r.To))
	}
}

func applyCustomer(w *sqlb.Where, customerID *int64) {
	if customerID != nil {
		w.Add(sqlb.Eq("i.customer_id", "customer_id", *customerID))
	}
}

// ListCustomers returns every customer ordered by name.
func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.exec.Query(ctx, `SELECT id, name FROM customers ORDER BY name`, nil)
	if err != nil {
		return nil, fmt.Errorf("receivables: list customers: %w", err)
	}
	customers := make([]Customer, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, Customer{ID: toInt64(row["id"]), Name: toString(row["name"])})
	}
	return customers, nil
}

// ListInvoices returns the invoices matching filter with their outstanding balance.
// Overdue is left for the caller to derive.
func (r *Repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	var where sqlb.Where
	applyCustomer(&where, filter.CustomerID)
	applyRange(&where, filter.Range)
	if filter.Query != "" {
		where.Add(sqlb.Contains{Columns: []string{"i.invoice_no", "c.name"}, Param: "q", Term: filter.Query})
	}
	clause, args := where.Render()
	dir := filter.Order
	if dir != sqlb.Desc {
		dir = sqlb.Asc
	}
	order := invoiceOrder.Render(filter.Sort, dir, "i.id "+string(dir))

	query := fmt.Sprintf(`
		SELECT
			i.id,
			i.invoice_no,
			c.name AS customer_name,
			i.invoice_date,
			i.due_date,
			i.amount_total,
			i.status,
			%s AS outstanding
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		%s
		%s
		%s`, outstandingExpr, paidJoin, clause, order)

	rows, err := r.exec.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("receivables: list invoices: %w", err)
	}
	invoices := make([]Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, Invoice{
			ID:           toInt64(row["id"]),
			InvoiceNo:    toString(row["invoice_no"]),
			CustomerName: toString(row["customer_name"]),
			InvoiceDate:  toDate(row["invoice_date"]),
			DueDate:      toDate(row["due_date"]),
			AmountTotal:  toDecimal(row["amount_total"]),
			Status:       toString(row["status"]),
			Outstanding:  toDecimal(row["outstanding"]),
		})
	}
	return invoices, nil
}

const insertPaymentSQL = `INSERT INTO payments (invoice_id, amount, payment_date)
VALUES (@invoice_id, @amount, @payment_date)
RETURNING id`

func paymentArgs(p PaymentInput) pgx.NamedArgs {
	return pgx.NamedArgs{
		"invoice_id":   p.InvoiceID,
		"amount":       p.Amount.String(),
		"payment_date": p.PaymentDate,
	}
}

// InsertPayment stores one payment and returns its generated identifier.
func (r *Repository) InsertPayment(ctx context.Context, p PaymentInput) (int64, error) {
	res, err := r.exec.Exec(ctx, insertPaymentSQL, paymentArgs(p))
	if err != nil {
		return 0, fmt.Errorf("receivables: insert payment: %w", err)
	}
	return res.LastInsertID, nil
}

// InsertPayments stores all payments in one transaction and returns the number inserted.
func (r *Repository) InsertPayments(ctx context.Context, payments []PaymentInput) (int64, error) {
	if len(payments) == 0 {
		return 0, nil
	}
	args := make([]pgx.NamedArgs, 0, len(payments))
	for _, p := range payments {
		args = append(args, paymentArgs(p))
	}
	res, err := r.exec.Exec(ctx, insertPaymentSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("receivables: insert payments: %w", err)
	}
	return res.RowsAffected, nil
}

// KPITotals sums invoiced, received and outstanding amounts.
func (r *Repository) KPITotals(ctx context.Context, filter KPIFilter) (KPITotals, error) {
	var where sqlb.Where
	applyCustomer(&where, filter.CustomerID)
	applyRange(&where, filter.Range)
	clause, args := where.Render()

	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(i.amount_total), 0) AS total_invoiced,
			COALESCE(SUM(p.paid), 0) AS total_received,
			COALESCE(SUM(%s), 0) AS total_outstanding
		FROM invoices i
		%s
		%s`, outstandingExpr, paidJoin, clause)

	rows, err := r.exec.Query(ctx, query, args)
	if err != nil {
		return KPITotals{}, fmt.Errorf("receivables: kpi totals: %w", err)
	}
	if len(rows) == 0 {
		return KPITotals{}, nil
	}
	row := rows[0]
	return KPITotals{
		Invoiced:    toDecimal(row["total_invoiced"]),
		Received:    toDecimal(row["total_received"]),
		Outstanding: toDecimal(row["total_outstanding"]),
	}, nil
}

// KPICounts counts the matching invoices and those overdue on day today.
func (r *Repository) KPICounts(ctx context.Context, filter KPIFilter, today time.Time) (KPICounts, error) {
	var where sqlb.Where
	applyCustomer(&where, filter.CustomerID)
	applyRange(&where, filter.Range)
	clause, args := where.Render()
	args["today"] = calendarDay(today)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total_invoices,
			COUNT(*) FILTER (WHERE i.due_date < @today AND %s > 0) AS overdue_invoices
		FROM invoices i
		%s
		%s`, outstandingExpr, paidJoin, clause)

	rows, err := r.exec.Query(ctx, query, args)
	if err != nil {
		return KPICounts{}, fmt.Errorf("receivables: kpi counts: %w", err)
	}
	if len(rows) == 0 {
		return KPICounts{}, nil
	}
	return KPICounts{
		Invoices: toInt64(rows[0]["total_invoices"]),
		Overdue:  toInt64(rows[0]["overdue_invoices"]),
	}, nil
}

// TopCustomers ranks customers with a positive outstanding balance.
func (r *Repository) TopCustomers(ctx context.Context, filter TopCustomersFilter) ([]TopCustomer, error) {
	var where sqlb.Where
	applyRange(&where, filter.Range)
	clause, args := where.Render()
	args["limit"] = filter.Limit

	query := fmt.Sprintf(`
		SELECT c.id, c.name, SUM(%[1]s) AS outstanding
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		%[2]s
		%[3]s
		GROUP BY c.id, c.name
		HAVING SUM(%[1]s) > 0
		ORDER BY outstanding DESC, c.id
		LIMIT @limit`, outstandingExpr, paidJoin, clause)

	rows, err := r.exec.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("receivables: top customers: %w", err)
	}
	out := make([]TopCustomer, 0, len(rows))
	for _, row := range rows {
		out = append(out, TopCustomer{
			ID:          toInt64(row["id"]),
			Name:        toString(row["name"]),
			Outstanding: toDecimal(row["outstanding"]),
		})
	}
	return out, nil
}

// Monthly buckets invoices by invoice month. Payments count towards the month
// of the invoice they settle.
func (r *Repository) Monthly(ctx context.Context, rng DateRange) ([]MonthlyPoint, error) {
	var where sqlb.Where
	applyRange(&where, rng)
	clause, args := where.Render()

	query := fmt.Sprintf(`
		SELECT
			date_trunc('month', i.invoice_date)::date AS month,
			SUM(i.amount_total) AS invoiced,
			COALESCE(SUM(p.paid), 0) AS received
		FROM invoices i
		%s
		%s
		GROUP BY 1
		ORDER BY 1`, paidJoin, clause)

	rows, err := r.exec.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("receivables: monthly: %w", err)
	}
	out := make([]MonthlyPoint, 0, len(rows))
	for _, row := range rows {
		month := toDate(row["month"])
		if month == nil {
			continue
		}
		out = append(out, MonthlyPoint{
			Month:    *month,
			Invoiced: toDecimal(row["invoiced"]),
			Received: toDecimal(row["received"]),
		})
	}
	return out, nil
}
