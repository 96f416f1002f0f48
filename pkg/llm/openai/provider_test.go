package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-agent-gateway/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateParsesCompletion(t *testing.T) {
	var captured chatRequest
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "Hello there"}}],
			"usage": {"total_tokens": 42}
		}`)
	}))
	defer backend.Close()

	provider := NewOpenAIProvider("test-key", "gpt-4o-mini", backend.URL)
	result, err := provider.Generate(context.Background(), []llm.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "agent", Content: "Earlier reply"},
		{Role: "user", Content: "Hi"},
	}, llm.Params{MaxTokens: 100})

	require.NoError(t, err)
	assert.Equal(t, "Hello there", result.Content)
	assert.Equal(t, 42, result.TokensUsed)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "assistant", captured.Messages[1].Role, "agent role must map to assistant")
}

func TestGenerateClassifiesBackendErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"rate limited", http.StatusTooManyRequests, llm.IsQuota},
		{"backend down", http.StatusServiceUnavailable, llm.IsTransient},
		{"bad request", http.StatusBadRequest, llm.IsInvalidRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer backend.Close()

			provider := NewOpenAIProvider("k", "gpt-4o-mini", backend.URL)
			_, err := provider.Generate(context.Background(), []llm.Message{{Role: "user", Content: "Hi"}}, llm.Params{})
			require.Error(t, err)
			assert.True(t, tc.check(err))
		})
	}
}

func TestGenerateStreamForwardsDeltas(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hel", "lo ", "world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer backend.Close()

	provider := NewOpenAIProvider("k", "gpt-4o-mini", backend.URL)
	stream, err := provider.GenerateStream(context.Background(), []llm.Message{{Role: "user", Content: "Hi"}}, llm.Params{})
	require.NoError(t, err)

	var got strings.Builder
	for delta := range stream.Deltas() {
		got.WriteString(delta)
	}
	assert.Equal(t, "Hello world", got.String())
	assert.NoError(t, stream.Err())
}

func TestGenerateStreamSurfacesMalformedChunk(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n\n")
	}))
	defer backend.Close()

	provider := NewOpenAIProvider("k", "gpt-4o-mini", backend.URL)
	stream, err := provider.GenerateStream(context.Background(), []llm.Message{{Role: "user", Content: "Hi"}}, llm.Params{})
	require.NoError(t, err)

	for range stream.Deltas() {
	}
	assert.True(t, llm.IsTransient(stream.Err()))
}
