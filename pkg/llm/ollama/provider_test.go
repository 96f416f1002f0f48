package ollama

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

func TestGenerateParsesChatResponse(t *testing.T) {
	var captured ollamaChatRequest
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		fmt.Fprint(w, `{
			"model": "llama3",
			"message": {"role": "assistant", "content": "Local reply"},
			"done": true,
			"eval_count": 17
		}`)
	}))
	defer backend.Close()

	provider := NewOllamaProvider(backend.URL, "llama3")
	result, err := provider.Generate(context.Background(), []llm.Message{
		{Role: "user", Content: "Hi"},
	}, llm.Params{Temperature: 0.7, MaxTokens: 64})

	require.NoError(t, err)
	assert.Equal(t, "Local reply", result.Content)
	assert.Equal(t, 17, result.TokensUsed)

	assert.Equal(t, "llama3", captured.Model)
	require.NotNil(t, captured.Options)
	assert.Equal(t, 64, captured.Options.NumPredict)
}

func TestGenerateStreamReadsNDJSON(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunks := []string{
			`{"message":{"role":"assistant","content":"Loc"},"done":false}`,
			`{"message":{"role":"assistant","content":"al "},"done":false}`,
			`{"message":{"role":"assistant","content":"reply"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"eval_count":17}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintln(w, chunk)
		}
	}))
	defer backend.Close()

	provider := NewOllamaProvider(backend.URL, "llama3")
	stream, err := provider.GenerateStream(context.Background(), []llm.Message{{Role: "user", Content: "Hi"}}, llm.Params{})
	require.NoError(t, err)

	var got strings.Builder
	for delta := range stream.Deltas() {
		got.WriteString(delta)
	}
	assert.Equal(t, "Local reply", got.String())
	assert.NoError(t, stream.Err())
}

func TestUnreachableBackendIsTransient(t *testing.T) {
	provider := NewOllamaProvider("http://127.0.0.1:1", "llama3")

	_, err := provider.Generate(context.Background(), []llm.Message{{Role: "user", Content: "Hi"}}, llm.Params{})
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err), "connection failure must be retriable")
}
