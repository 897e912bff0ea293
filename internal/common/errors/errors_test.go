// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"retryable price lookup", NewPriceLookupFailedError("AAPL", errors.New("redis down")), true},
		{"non-retryable missing alert", NewAlertNotFoundError("8d7f2c3a-1111-2222-3333-444455556666"), false},
		{"non-retryable bad payload", NewInvalidDispatchUnitError("alertId too short"), false},
		{"wrapped standard error", fmt.Errorf("handling unit: %w", NewAlertNotFoundError("x")), false},
		{"unknown error defaults to retryable", errors.New("connection reset"), true},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestConstructorsCarryCodeAndDetails(t *testing.T) {
	lookupErr := NewPriceLookupFailedError("TSLA", errors.New("timeout"))
	assert.Equal(t, ErrCodePriceLookupFailed, lookupErr.Code)
	assert.Contains(t, lookupErr.Details, "TSLA")
	assert.Contains(t, lookupErr.Details, "timeout")

	notFound := NewAlertNotFoundError("some-id")
	assert.Equal(t, ErrCodeAlertNotFound, notFound.Code)
	assert.Contains(t, notFound.Details, "some-id")

	var stdErr *StandardError
	require.ErrorAs(t, fmt.Errorf("drop: %w", notFound), &stdErr)
	assert.Equal(t, ErrCodeAlertNotFound, stdErr.Code)
}
