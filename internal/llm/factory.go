package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/thematic/internal/model"
)

// NewProvider creates a new generative provider based on configuration
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return wrap(NewOpenAIProvider(config))
	case "anthropic", "claude":
		return wrap(NewAnthropicProvider(config))
	case "ollama":
		return wrap(NewOllamaProvider(config))
	case "":
		return nil, fmt.Errorf("no LLM provider configured (supported: openai, anthropic, ollama)")
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// NewEmbedder creates an embedding client. Anthropic has no embedding API.
func NewEmbedder(config Config) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return wrapEmbedder(NewOpenAIProvider(config))
	case "ollama":
		return wrapEmbedder(NewOllamaProvider(config))
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// wrap keeps a nil concrete pointer from becoming a non-nil interface.
func wrap[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

func wrapEmbedder[E Embedder](e E, err error) (Embedder, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ConfigFromModel converts model.LLMConfig to llm.Config, filling the API key
// from the environment when the file leaves it empty.
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      apiKeyOrEnv(c.Provider, c.APIKey),
		BaseURL:     baseURLOrEnv(c.Provider, c.BaseURL),
		Timeout:     c.Timeout,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

// EmbeddingConfigFromModel converts model.EmbeddingConfig to llm.Config.
func EmbeddingConfigFromModel(c model.EmbeddingConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     apiKeyOrEnv(c.Provider, c.APIKey),
		BaseURL:    baseURLOrEnv(c.Provider, c.BaseURL),
		Timeout:    c.Timeout,
		Dimensions: c.Dimensions,
	}
}

func apiKeyOrEnv(provider, key string) string {
	if key != "" {
		return key
	}
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

func baseURLOrEnv(provider, baseURL string) string {
	if baseURL == "" && strings.EqualFold(provider, "ollama") {
		return os.Getenv("OLLAMA_BASE_URL")
	}
	return baseURL
}
