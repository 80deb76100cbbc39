package llm

import (
	"testing"

	"github.com/ppiankov/thematic/internal/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{"claude alias", Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Provider: "ollama"}, "ollama", false},
		{"openai without key", Config{Provider: "openai"}, "", true},
		{"empty", Config{}, "", true},
		{"unknown", Config{Provider: "bard"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if p != nil {
					t.Errorf("Expected nil provider on error, got %T", p)
				}
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %s, want %s", p.Name(), tt.wantName)
			}
		})
	}
}

func TestNewEmbedder(t *testing.T) {
	if _, err := NewEmbedder(Config{Provider: "anthropic", APIKey: "k"}); err == nil {
		t.Error("Expected anthropic embedder to be rejected")
	}
	e, err := NewEmbedder(Config{Provider: "ollama", Model: "nomic-embed-text"})
	if err != nil {
		t.Fatalf("NewEmbedder failed: %v", err)
	}
	if e.Model() != "nomic-embed-text" {
		t.Errorf("Unexpected model %s", e.Model())
	}
}

func TestConfigFromModel_EnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	c := ConfigFromModel(model.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", Timeout: 10})
	if c.APIKey != "from-env" {
		t.Errorf("Expected key from env, got %q", c.APIKey)
	}

	c = ConfigFromModel(model.LLMConfig{Provider: "openai", APIKey: "explicit"})
	if c.APIKey != "explicit" {
		t.Errorf("Expected explicit key to win, got %q", c.APIKey)
	}

	e := EmbeddingConfigFromModel(model.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768})
	if e.BaseURL != "http://ollama:11434" {
		t.Errorf("Expected base URL from env, got %q", e.BaseURL)
	}
	if e.Dimensions != 768 {
		t.Errorf("Expected dimensions 768, got %d", e.Dimensions)
	}
}
