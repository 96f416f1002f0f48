package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		isKind  func(error) bool
		notKind []func(error) bool
	}{
		{
			name:    "429 maps to quota",
			status:  http.StatusTooManyRequests,
			isKind:  IsQuota,
			notKind: []func(error) bool{IsTransient, IsInvalidRequest},
		},
		{
			name:    "500 maps to transient",
			status:  http.StatusInternalServerError,
			isKind:  IsTransient,
			notKind: []func(error) bool{IsQuota, IsInvalidRequest},
		},
		{
			name:    "503 maps to transient",
			status:  http.StatusServiceUnavailable,
			isKind:  IsTransient,
			notKind: []func(error) bool{IsQuota, IsInvalidRequest},
		},
		{
			name:    "400 maps to invalid request",
			status:  http.StatusBadRequest,
			isKind:  IsInvalidRequest,
			notKind: []func(error) bool{IsQuota, IsTransient},
		},
		{
			name:    "401 maps to invalid request",
			status:  http.StatusUnauthorized,
			isKind:  IsInvalidRequest,
			notKind: []func(error) bool{IsQuota, IsTransient},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ClassifyHTTP("openai", tc.status, "backend said no")
			assert.True(t, tc.isKind(err))
			for _, not := range tc.notKind {
				assert.False(t, not(err))
			}
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := &TransientError{Provider: "ollama", Err: errors.New("connection reset")}
	wrapped := fmt.Errorf("generate: %w", inner)

	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsQuota(wrapped))
}

func TestErrorMessagesCarryProvider(t *testing.T) {
	err := ClassifyHTTP("anthropic", http.StatusTooManyRequests, "rate limited")
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "429")
}
