package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ardash/internal/app"
	"github.com/odyssey-erp/ardash/internal/platform/db"
)

// Seeds demo receivables into an existing customers/invoices/payments schema.
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.DSN(), cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&existing); err != nil {
		log.Fatalf("count customers: %v", err)
	}
	if existing > 0 {
		fmt.Println("→ customers already present, skipping seed")
		return
	}

	fmt.Println("→ Seeding receivables...")
	if err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return seedReceivables(ctx, tx, time.Now().UTC())
	}); err != nil {
		log.Fatalf("seed receivables: %v", err)
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

type seedInvoice struct {
	number   string
	ageDays  int
	termDays int
	total    string
	status   string
	payments []string
}

var seedData = map[string][]seedInvoice{
	"Acme Trading": {
		{number: "INV-1001", ageDays: 95, termDays: 30, total: "1200.00", status: "open", payments: []string{"400.00"}},
		{number: "INV-1002", ageDays: 40, termDays: 30, total: "850.50", status: "open"},
	},
	"Borealis Logistics": {
		{number: "INV-1003", ageDays: 70, termDays: 14, total: "2300.00", status: "paid", payments: []string{"2000.00", "300.00"}},
		{number: "INV-1004", ageDays: 10, termDays: 30, total: "640.00", status: "open"},
	},
	"Cedar Retail": {
		{number: "INV-1005", ageDays: 120, termDays: 30, total: "500.00", status: "paid", payments: []string{"550.00"}},
		{number: "INV-1006", ageDays: 5, termDays: 0, total: "99.99", status: "draft"},
	},
}

func seedReceivables(ctx context.Context, tx pgx.Tx, now time.Time) error {
	for customer, invoices := range seedData {
		var customerID int64
		if err := tx.QueryRow(ctx, `INSERT INTO customers (name) VALUES (@name) RETURNING id`,
			pgx.NamedArgs{"name": customer}).Scan(&customerID); err != nil {
			return fmt.Errorf("insert customer %s: %w", customer, err)
		}
		for _, inv := range invoices {
			issued := now.AddDate(0, 0, -inv.ageDays)
			var due any
			if inv.termDays > 0 {
				due = issued.AddDate(0, 0, inv.termDays)
			}
			var invoiceID int64
			if err := tx.QueryRow(ctx, `INSERT INTO invoices (invoice_no, customer_id, invoice_date, due_date, amount_total, status)
				VALUES (@invoice_no, @customer_id, @invoice_date, @due_date, @amount_total, @status) RETURNING id`,
				pgx.NamedArgs{
					"invoice_no":   inv.number,
					"customer_id":  customerID,
					"invoice_date": issued,
					"due_date":     due,
					"amount_total": decimal.RequireFromString(inv.total).String(),
					"status":       inv.status,
				}).Scan(&invoiceID); err != nil {
				return fmt.Errorf("insert invoice %s: %w", inv.number, err)
			}
			for i, amount := range inv.payments {
				if _, err := tx.Exec(ctx, `INSERT INTO payments (invoice_id, amount, payment_date) VALUES (@invoice_id, @amount, @payment_date)`,
					pgx.NamedArgs{
						"invoice_id":   invoiceID,
						"amount":       amount,
						"payment_date": issued.AddDate(0, 0, 7*(i+1)),
					}); err != nil {
					return fmt.Errorf("insert payment for %s: %w", inv.number, err)
				}
			}
		}
	}
	return nil
}
