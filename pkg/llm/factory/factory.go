package factory

import (
	"fmt"

	"ai-agent-gateway/pkg/llm"
	"ai-agent-gateway/pkg/llm/anthropic"
	"ai-agent-gateway/pkg/llm/googleai"
	"ai-agent-gateway/pkg/llm/ollama"
	"ai-agent-gateway/pkg/llm/openai"
)

// Config carries the per-provider credentials and endpoints from app config.
type Config struct {
	OpenAIKey     string
	AnthropicKey  string
	GoogleAIKey   string
	OllamaBaseURL string
}

// NewProvider builds the adapter for providerName. The returned Provider is
// stateless and safe for concurrent use.
func NewProvider(providerName, modelName string, cfg Config) (llm.Provider, error) {
	switch providerName {
	case "openai":
		return openai.NewOpenAIProvider(cfg.OpenAIKey, modelName, ""), nil
	case "anthropic":
		return anthropic.NewAnthropicProvider(cfg.AnthropicKey, modelName, ""), nil
	case "googleai", "google":
		return googleai.NewGoogleAIProvider(cfg.GoogleAIKey, modelName, ""), nil
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerName)
	}
}

// Registry caches one adapter per (provider, model) pair so agent engines
// sharing a backend share the HTTP client.
type Registry struct {
	cfg       Config
	providers map[string]llm.Provider
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:       cfg,
		providers: make(map[string]llm.Provider),
	}
}

// Get returns the cached adapter for the pair, constructing it on first use.
// Not safe for concurrent use; callers serialize through the agent pool.
func (r *Registry) Get(providerName, modelName string) (llm.Provider, error) {
	key := providerName + ":" + modelName
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	p, err := NewProvider(providerName, modelName, r.cfg)
	if err != nil {
		return nil, err
	}
	r.providers[key] = p
	return p, nil
}
