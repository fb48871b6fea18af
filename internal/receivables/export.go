package receivables

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var invoiceCSVHeader = []string{
	"Invoice No", "Customer", "Invoice Date", "Due Date", "Total", "Status", "Outstanding", "Overdue",
}

// WriteInvoicesCSV emits the invoice listing as CSV.
func WriteInvoicesCSV(w io.Writer, invoices []Invoice) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(invoiceCSVHeader); err != nil {
		return err
	}
	for _, inv := range invoices {
		if err := writer.Write([]string{
			inv.InvoiceNo,
			inv.CustomerName,
			derefDate(inv.InvoiceDate),
			derefDate(inv.DueDate),
			inv.AmountTotal.StringFixed(2),
			inv.Status,
			inv.Outstanding.StringFixed(2),
			strconv.FormatBool(inv.Overdue),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func derefDate(t *time.Time) string {
	if s := formatDate(t); s != nil {
		return *s
	}
	return ""
}
