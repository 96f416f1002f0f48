package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIProvider struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.Provider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, modelName, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	Temperature      float64       `json:"temperature,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAIProvider) buildRequest(messages []llm.Message, params llm.Params, stream bool) chatRequest {
	apiMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		role := msg.Role
		if role == "agent" || role == "model" {
			role = "assistant"
		}
		apiMessages[i] = chatMessage{Role: role, Content: msg.Content}
	}

	model := o.ModelName
	if params.Model != "" {
		model = params.Model
	}

	return chatRequest{
		Model:            model,
		Messages:         apiMessages,
		Stream:           stream,
		Temperature:      params.Temperature,
		MaxTokens:        params.MaxTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	}
}

func (o *OpenAIProvider) post(ctx context.Context, payload chatRequest) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "openai", Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/chat/completions", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "openai", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &llm.TransientError{Provider: "openai", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.ClassifyHTTP("openai", resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

// --- Interface Implementation ---

func (o *OpenAIProvider) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Result, error) {
	start := time.Now()

	resp, err := o.post(ctx, o.buildRequest(messages, params, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransientError{Provider: "openai", Err: fmt.Errorf("read response: %w", err)}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, &llm.TransientError{Provider: "openai", Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(apiResp.Choices) == 0 {
		return nil, &llm.TransientError{Provider: "openai", Err: fmt.Errorf("empty choices")}
	}

	return &llm.Result{
		Content:    apiResp.Choices[0].Message.Content,
		TokensUsed: apiResp.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream consumes the SSE stream ("data: {...}" lines terminated by
// "data: [DONE]") and forwards each content delta.
func (o *OpenAIProvider) GenerateStream(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := o.post(streamCtx, o.buildRequest(messages, params, true))
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
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				stream.Finish(nil)
				return
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				stream.Finish(&llm.TransientError{Provider: "openai", Err: fmt.Errorf("decode chunk: %w", err)})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !stream.Send(streamCtx, delta) {
					stream.Finish(streamCtx.Err())
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			if streamCtx.Err() != nil {
				stream.Finish(streamCtx.Err())
				return
			}
			stream.Finish(&llm.TransientError{Provider: "openai", Err: err})
			return
		}
		stream.Finish(nil)
	}()

	return stream, nil
}
