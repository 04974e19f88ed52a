package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	withType := &APIError{Provider: "openai", StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
	assert.Equal(t, "openai: API error (status 429, type rate_limit_error): slow down", withType.Error())

	withoutType := &APIError{Provider: "anthropic", StatusCode: 500, Message: "boom"}
	assert.Equal(t, "anthropic: API error (status 500): boom", withoutType.Error())
}

func TestAPIError_IsTransient(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
		errType   string
	}{
		{0, true, "network"},
		{400, false, "client"},
		{401, false, "client"},
		{429, true, "rate_limit"},
		{500, true, "server"},
		{503, true, "server"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := &APIError{Provider: "openai", StatusCode: tt.status}
			assert.Equal(t, tt.transient, err.IsTransient())
			assert.Equal(t, tt.errType, err.ErrorType())
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, isTransientError(nil))
	assert.False(t, isTransientError(errors.New("plain")))
	assert.False(t, isTransientError(context.Canceled))
	assert.False(t, isTransientError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, isTransientError(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 502})))
	assert.False(t, isTransientError(&APIError{StatusCode: 404}))
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "timeout", errorType(context.DeadlineExceeded))
	assert.Equal(t, "cancelled", errorType(context.Canceled))
	assert.Equal(t, "rate_limit", errorType(&APIError{StatusCode: 429}))
	assert.Equal(t, "unknown", errorType(errors.New("x")))
}
