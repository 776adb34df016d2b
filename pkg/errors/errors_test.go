package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.AppError
		status   int
		code     string
		sentinel error
	}{
		{"validation", errors.Validation(map[string]string{"barcode": "required"}), http.StatusBadRequest, "VALIDATION_ERROR", errors.ErrValidation},
		{"not found", errors.NotFound("inventory unit"), http.StatusNotFound, "NOT_FOUND", errors.ErrNotFound},
		{"conflict", errors.Conflict("duplicate barcode"), http.StatusConflict, "CONFLICT", errors.ErrConflict},
		{"business rule", errors.BusinessRule("shelf capacity exceeded"), http.StatusBadRequest, "BUSINESS_RULE_VIOLATION", errors.ErrBusinessRule},
		{"internal", errors.Internal("storage failure"), http.StatusInternalServerError, "INTERNAL_ERROR", errors.ErrInternal},
		{"rate limited", errors.TooManyRequests("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS", errors.ErrTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := errors.NotFound("picklist")
	assert.Equal(t, "picklist not found: resource not found", err.Error())
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("pick: %w", errors.BusinessRule("FIFO rule violated"))
	assert.Equal(t, http.StatusBadRequest, errors.StatusCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, errors.StatusCode(stderrors.New("connection reset")))
}

func TestWithDetail(t *testing.T) {
	err := errors.NotFound("material").WithDetail("materials", "M-1, M-2")
	require.NotNil(t, err.Details)
	assert.Equal(t, "M-1, M-2", err.Details["materials"])

	var appErr *errors.AppError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}
