package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "missing provider")
	assert.Equal(t, "INVALID_CONFIG: missing provider", err.Error())

	wrapped := Wrap(fmt.Errorf("file not found"), ErrCodeMissingConfig, "config unreadable")
	assert.Equal(t, "MISSING_CONFIG: config unreadable: file not found", wrapped.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrCodeProviderAPI, "send failed")

	assert.True(t, stderrors.Is(err, cause))
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(nil, ErrCodeTransportFailure, "gateway down")))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad payload")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestSeverityDrivesReporting(t *testing.T) {
	assert.Equal(t, SeverityWarning, GetSeverity(NewRejectedError("invalid_recipient", "blocked")))
	assert.Equal(t, SeverityError, GetSeverity(New(ErrCodeInternalError, "boom")))
	assert.Equal(t, SeverityError, GetSeverity(fmt.Errorf("unclassified")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeLedgerConflict, GetCode(New(ErrCodeLedgerConflict, "duplicate origin")))
	assert.Equal(t, ErrCodeInternalError, GetCode(fmt.Errorf("plain")))
}

func TestNewAPIErrorRetryability(t *testing.T) {
	assert.True(t, NewAPIError("telegram", "/sendMessage", 429, fmt.Errorf("too many requests")).Retryable)
	assert.True(t, NewAPIError("waha", "/api/sendText", 503, fmt.Errorf("unavailable")).Retryable)
	assert.False(t, NewAPIError("telegram", "/sendMessage", 400, fmt.Errorf("bad request")).Retryable)
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeNotFound, "customer missing").WithContext("customerId", int64(7))
	assert.Equal(t, int64(7), err.Context["customerId"])
}
