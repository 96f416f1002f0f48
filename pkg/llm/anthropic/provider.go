package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-agent-gateway/pkg/llm"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

type AnthropicProvider struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.Provider = &AnthropicProvider{}

func NewAnthropicProvider(apiKey, modelName, baseURL string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &AnthropicProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type messagesRequest struct {
	Model       string       `json:"model"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

// buildRequest maps provider-agnostic messages onto the Anthropic messages
// API. The system prompt travels in its own top-level field.
func (a *AnthropicProvider) buildRequest(messages []llm.Message, params llm.Params, stream bool) messagesRequest {
	var system string
	apiMessages := make([]apiMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "agent", "model", "assistant":
			apiMessages = append(apiMessages, apiMessage{Role: "assistant", Content: msg.Content})
		default:
			apiMessages = append(apiMessages, apiMessage{Role: "user", Content: msg.Content})
		}
	}

	model := a.ModelName
	if params.Model != "" {
		model = params.Model
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return messagesRequest{
		Model:       model,
		System:      system,
		Messages:    apiMessages,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stream:      stream,
	}
}

func (a *AnthropicProvider) post(ctx context.Context, payload messagesRequest) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "anthropic", Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/v1/messages", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "anthropic", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, &llm.TransientError{Provider: "anthropic", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.ClassifyHTTP("anthropic", resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

// --- Interface Implementation ---

func (a *AnthropicProvider) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Result, error) {
	start := time.Now()

	resp, err := a.post(ctx, a.buildRequest(messages, params, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransientError{Provider: "anthropic", Err: fmt.Errorf("read response: %w", err)}
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, &llm.TransientError{Provider: "anthropic", Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(apiResp.Content) == 0 {
		return nil, &llm.TransientError{Provider: "anthropic", Err: fmt.Errorf("empty content")}
	}

	return &llm.Result{
		Content:    apiResp.Content[0].Text,
		TokensUsed: apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream consumes the SSE event stream and forwards every
// content_block_delta text fragment.
func (a *AnthropicProvider) GenerateStream(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := a.post(streamCtx, a.buildRequest(messages, params, true))
	if err != nil {
		cancel()
		return nil, err
	}

	stream := llm.NewStream(cancel)

	go func() {
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text != "" {
					if !stream.Send(streamCtx, event.Delta.Text) {
						stream.Finish(streamCtx.Err())
						return
					}
				}
			case "message_stop":
				stream.Finish(nil)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if streamCtx.Err() != nil {
				stream.Finish(streamCtx.Err())
				return
			}
			stream.Finish(&llm.TransientError{Provider: "anthropic", Err: err})
			return
		}
		stream.Finish(nil)
	}()

	return stream, nil
}
