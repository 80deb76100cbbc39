// Package llm holds the generative and embedding provider clients and the
// prompt/parse layer that turns model output into theme and persona drafts.
package llm

import (
	"context"
)

// Provider defines the interface for generative LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs a single-turn completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Embedder turns text into a vector
type Embedder interface {
	Name() string
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the configured model when set
	Model string

	MaxTokens int

	// JSON asks the provider for a JSON object response where supported
	JSON bool
}

// CompletionResponse contains the model output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, test servers)
	BaseURL string

	Timeout     int // seconds
	MaxTokens   int
	Temperature float64

	// Dimensions requests shortened embeddings from OpenAI text-embedding-3
	// models; 0 keeps the model's native length.
	Dimensions int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     120,
		MaxTokens:   4000,
		Temperature: 0.2,
	}
}

func (c Config) timeoutOr(seconds int) int {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return seconds
}

func (c Config) maxTokensFor(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}
