package model

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Persona dedup strategies.
const (
	PersonaDedupExact        = "exact"
	PersonaDedupTokenOverlap = "token_overlap"
	PersonaDedupEmbedding    = "embedding"
)

// Config is the complete thematic configuration
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Synthesis    SynthesisConfig    `yaml:"synthesis" mapstructure:"synthesis"`
	Persona      PersonaConfig      `yaml:"persona" mapstructure:"persona"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig locates the SQLite database
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LLMConfig configures the generative provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"` // openai only, 0 for native length
}

// SynthesisConfig holds the tunables of the theme pipeline
type SynthesisConfig struct {
	DedupThreshold           float64 `yaml:"dedup_threshold" mapstructure:"dedup_threshold"`
	LinkThreshold            float64 `yaml:"link_threshold" mapstructure:"link_threshold"`
	MaxLinksPerTheme         int     `yaml:"max_links_per_theme" mapstructure:"max_links_per_theme"`
	EvidenceLimit            int     `yaml:"evidence_limit" mapstructure:"evidence_limit"`
	FacetChunkSize           int     `yaml:"facet_chunk_size" mapstructure:"facet_chunk_size"`
	AccountWideSemanticDedup bool    `yaml:"account_wide_semantic_dedup" mapstructure:"account_wide_semantic_dedup"`
}

// PersonaConfig holds the tunables of the persona pipeline
type PersonaConfig struct {
	Dedup        string   `yaml:"dedup" mapstructure:"dedup"`
	OverlapRatio float64  `yaml:"overlap_ratio" mapstructure:"overlap_ratio"`
	Concurrency  int      `yaml:"concurrency" mapstructure:"concurrency"`
	FacetKinds   []string `yaml:"facet_kinds" mapstructure:"facet_kinds"`
	Contrast     bool     `yaml:"contrast" mapstructure:"contrast"`
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir              string `yaml:"dir" mapstructure:"dir"`
	MemoryTTLMinutes int    `yaml:"memory_ttl_minutes" mapstructure:"memory_ttl_minutes"`
	DiskTTLHours     int    `yaml:"disk_ttl_hours" mapstructure:"disk_ttl_hours"`
}

// RateLimitingConfig bounds calls to the embedding provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the backfill worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"` // dev, prod
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the design values
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Path: "./thematic.db"},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     120,
			MaxTokens:   4000,
			Temperature: 0.2,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Timeout:    30,
			Dimensions: 1536,
		},
		Synthesis: SynthesisConfig{
			DedupThreshold:   0.80,
			LinkThreshold:    0.40,
			MaxLinksPerTheme: 50,
			EvidenceLimit:    200,
			FacetChunkSize:   100,
		},
		Persona: PersonaConfig{
			Dedup:        PersonaDedupTokenOverlap,
			OverlapRatio: 0.5,
			Concurrency:  4,
			FacetKinds: []string{
				"job_function",
				"seniority_level",
				"persona",
				"preference",
				"value",
				"tool",
				"workflow",
			},
			Contrast: true,
		},
		Cache: CacheConfig{
			Enabled:          true,
			Dir:              ".thematic-cache",
			MemoryTTLMinutes: 60,
			DiskTTLHours:     24 * 7,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{Workers: 4},
		Log:         LogConfig{Mode: "dev", Level: "info"},
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Store,
		validation.Field(&c.Store.Path, validation.Required),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := validation.ValidateStruct(&c.LLM,
		validation.Field(&c.LLM.Provider, validation.In("", "openai", "anthropic", "claude", "ollama")),
		validation.Field(&c.LLM.Timeout, validation.Min(0)),
		validation.Field(&c.LLM.MaxTokens, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := validation.ValidateStruct(&c.Embedding,
		validation.Field(&c.Embedding.Provider, validation.In("", "openai", "ollama")),
		validation.Field(&c.Embedding.Timeout, validation.Min(0)),
		validation.Field(&c.Embedding.Dimensions, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	if err := c.Persona.Validate(); err != nil {
		return fmt.Errorf("persona: %w", err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Mode, validation.In("", "dev", "development", "prod", "production")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Validate checks thresholds and limits.
func (c *SynthesisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DedupThreshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.LinkThreshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxLinksPerTheme, validation.Required, validation.Min(1)),
		validation.Field(&c.EvidenceLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.FacetChunkSize, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// Validate checks the dedup strategy and fan-out.
func (c *PersonaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dedup, validation.Required,
			validation.In(PersonaDedupExact, PersonaDedupTokenOverlap, PersonaDedupEmbedding)),
		validation.Field(&c.OverlapRatio, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Concurrency, validation.Min(0)),
	)
}
