package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-agent-gateway/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type ollamaChatResponse struct {
	Model     string        `json:"model"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	EvalCount int           `json:"eval_count"`
}

func (o *OllamaProvider) buildRequest(messages []llm.Message, params llm.Params, stream bool) ollamaChatRequest {
	ollamaMessages := make([]ollamaMessage, len(messages))
	for i, msg := range messages {
		role := msg.Role
		// "model" is the Gemini-style alias for assistant
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if params.Model != "" {
		model = params.Model
	}

	opts := &ollamaOptions{
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	if params.MaxTokens > 0 {
		opts.NumPredict = params.MaxTokens
	}

	return ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options:  opts,
	}
}

func (o *OllamaProvider) post(ctx context.Context, payload ollamaChatRequest) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "ollama", Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "ollama", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &llm.TransientError{Provider: "ollama", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.ClassifyHTTP("ollama", resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

// --- Interface Implementation ---

func (o *OllamaProvider) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Result, error) {
	start := time.Now()

	resp, err := o.post(ctx, o.buildRequest(messages, params, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransientError{Provider: "ollama", Err: fmt.Errorf("read response: %w", err)}
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return nil, &llm.TransientError{Provider: "ollama", Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	return &llm.Result{
		Content:    ollamaResp.Message.Content,
		TokensUsed: ollamaResp.EvalCount,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream reads Ollama's newline-delimited JSON chunks and forwards
// each message fragment as a delta.
func (o *OllamaProvider) GenerateStream(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Stream, error) {
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
			var chunk ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				stream.Finish(&llm.TransientError{Provider: "ollama", Err: fmt.Errorf("decode chunk: %w", err)})
				return
			}
			if chunk.Message.Content != "" {
				if !stream.Send(streamCtx, chunk.Message.Content) {
					stream.Finish(streamCtx.Err())
					return
				}
			}
			if chunk.Done {
				stream.Finish(nil)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if streamCtx.Err() != nil {
				stream.Finish(streamCtx.Err())
				return
			}
			stream.Finish(&llm.TransientError{Provider: "ollama", Err: err})
			return
		}
		stream.Finish(nil)
	}()

	return stream, nil
}
