package googleai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-agent-gateway/pkg/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GoogleAIProvider struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.Provider = &GoogleAIProvider{}

func NewGoogleAIProvider(apiKey, modelName, baseURL string) *GoogleAIProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GoogleAIProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (g *GoogleAIProvider) buildRequest(messages []llm.Message, params llm.Params) generateRequest {
	req := generateRequest{
		GenerationConfig: &generationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
			TopP:            params.TopP,
		},
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			req.SystemInstruction = &content{Parts: []part{{Text: msg.Content}}}
		case "agent", "assistant", "model":
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: msg.Content}}})
		}
	}

	return req
}

// --- Interface Implementation ---

func (g *GoogleAIProvider) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Result, error) {
	start := time.Now()

	model := g.ModelName
	if params.Model != "" {
		model = params.Model
	}

	payloadBytes, err := json.Marshal(g.buildRequest(messages, params))
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "googleai", Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.BaseURL, model, g.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, &llm.InvalidRequestError{Provider: "googleai", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &llm.TransientError{Provider: "googleai", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransientError{Provider: "googleai", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, llm.ClassifyHTTP("googleai", resp.StatusCode, string(bodyBytes))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, &llm.TransientError{Provider: "googleai", Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return nil, &llm.TransientError{Provider: "googleai", Err: fmt.Errorf("empty candidates")}
	}

	return &llm.Result{
		Content:    apiResp.Candidates[0].Content.Parts[0].Text,
		TokensUsed: apiResp.UsageMetadata.TotalTokenCount,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream degrades to a single-delta stream: the backend call itself
// is non-streaming, but the contract (cancellation included) is preserved.
func (g *GoogleAIProvider) GenerateStream(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream := llm.NewStream(cancel)

	go func() {
		result, err := g.Generate(streamCtx, messages, params)
		if err != nil {
			stream.Finish(err)
			return
		}
		if !stream.Send(streamCtx, result.Content) {
			stream.Finish(streamCtx.Err())
			return
		}
		stream.Finish(nil)
	}()

	return stream, nil
}
