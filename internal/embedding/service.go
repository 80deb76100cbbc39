// Package embedding turns text into vectors for deduplication and linking.
// Failures are logged and reported as a nil vector, never as an error.
package embedding

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ppiankov/thematic/internal/cache"
	"github.com/ppiankov/thematic/internal/llm"
	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/worker"
)

// Service wraps an embedding provider with caching and rate limiting
type Service struct {
	embedder llm.Embedder
	cache    cache.Cache
	limiter  *worker.Limiter
	log      *logger.Logger
}

// NewService builds a Service. cache and limiter may be nil.
func NewService(embedder llm.Embedder, c cache.Cache, limiter *worker.Limiter, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		embedder: embedder,
		cache:    c,
		limiter:  limiter,
		log:      log,
	}
}

// Model names the embedding model recorded next to stored vectors.
func (s *Service) Model() string {
	return s.embedder.Model()
}

// Embed returns the vector for text, or nil when text is blank or the
// provider fails. label identifies the caller in logs.
func (s *Service) Embed(ctx context.Context, text, label string) []float32 {
	text = strings.TrimSpace(text)
	if text == "" {
		s.log.Debug("embedding skipped for empty text", "label", label)
		return nil
	}

	key := cache.Key(s.embedder.Name(), s.embedder.Model(), text)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			var vec []float32
			if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
				return vec
			}
			_ = s.cache.Delete(key)
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.embedder.Name()); err != nil {
			s.log.Warn("embedding rate limit wait failed", "label", label, "error", err)
			return nil
		}
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.log.Warn("embedding failed", "label", label, "provider", s.embedder.Name(), "error", err)
		return nil
	}
	if len(vec) == 0 {
		s.log.Warn("embedding returned empty vector", "label", label)
		return nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(vec); err == nil {
			if err := s.cache.Set(key, data, 0); err != nil {
				s.log.Debug("embedding cache write failed", "label", label, "error", err)
			}
		}
	}
	return vec
}
