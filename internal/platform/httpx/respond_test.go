package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondErrorValidationKeepsMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	err := fmt.Errorf("record payment: %w", Validation("payment_date must be YYYY-MM-DD"))

	RespondError(rr, err)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"payment_date must be YYYY-MM-DD"}`, rr.Body.String())
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, IsClientError(err))
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}

func TestRespondErrorConflict(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("%w: key in use", ErrConflict))
	assert.Equal(t, http.StatusConflict, rr.Code)
}
