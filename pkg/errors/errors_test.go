package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetwork("Test", "timeout", nil)))
	assert.False(t, IsRetryable(NewParsing("Test", "bad markup", nil)))
	assert.False(t, IsRetryable(NewRateLimit("Test", 0)))
	assert.False(t, IsRetryable(NewValidation("Test", "missing field")))
	assert.False(t, IsRetryable(stderrors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsRetryableWrapped(t *testing.T) {
	err := fmt.Errorf("outer context: %w", NewNetwork("Test", "timeout", nil))
	assert.True(t, IsRetryable(err), "Classification must survive wrapping")
}

func TestErrorMessage(t *testing.T) {
	inner := stderrors.New("connection reset")
	err := NewNetwork("MercadoLibre", "fetch failed", inner)

	assert.Contains(t, err.Error(), "network")
	assert.Contains(t, err.Error(), "MercadoLibre")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}
