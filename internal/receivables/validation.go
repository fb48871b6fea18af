package receivables

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ardash/internal/platform/httpx"
)

// Client-facing validation messages.
const (
	MsgPaymentFieldsRequired = "invoice_id, amount, payment_date required"
	MsgPaymentDateFormat     = "payment_date must be YYYY-MM-DD"
	MsgBatchEmpty            = "at least one payment required"
)

// InvoiceRef is an invoice identifier sent either as a JSON number or as a
// numeric string, the latter being what form inputs produce. Anything that is
// not a whole number decodes to zero so that it fails the required check.
type InvoiceRef int64

// UnmarshalJSON implements json.Unmarshaler.
func (r *InvoiceRef) UnmarshalJSON(data []byte) error {
	*r = 0
	raw := string(bytes.TrimSpace(data))
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil
	}
	*r = InvoiceRef(id)
	return nil
}

// PaymentRequest is the payment body accepted over HTTP.
type PaymentRequest struct {
	InvoiceID   InvoiceRef      `json:"invoice_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Decimals validate as their float value so that required rejects zero.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validatePayment checks req and converts it into a PaymentInput. Missing
// fields are reported before a malformed date.
func validatePayment(v *validator.Validate, req PaymentRequest) (PaymentInput, error) {
	if err := v.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return PaymentInput{}, err
		}
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				return PaymentInput{}, httpx.Validation(MsgPaymentFieldsRequired)
			}
		}
		return PaymentInput{}, httpx.Validation(MsgPaymentDateFormat)
	}
	date, err := time.Parse(DateLayout, req.PaymentDate)
	if err != nil {
		return PaymentInput{}, httpx.Validation(MsgPaymentDateFormat)
	}
	return PaymentInput{InvoiceID: int64(req.InvoiceID), Amount: req.Amount, PaymentDate: date}, nil
}
