// Package pipeline wires configuration into the store, providers and the
// synthesis, persona, import and backfill runs used by the CLI.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/thematic/internal/backfill"
	"github.com/ppiankov/thematic/internal/cache"
	"github.com/ppiankov/thematic/internal/embedding"
	"github.com/ppiankov/thematic/internal/llm"
	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/persona"
	"github.com/ppiankov/thematic/internal/store"
	"github.com/ppiankov/thematic/internal/synth"
	"github.com/ppiankov/thematic/internal/worker"
)

const (
	userAgent      = "thematic/1.0"
	importTimeout  = 30 * time.Second
	importMaxBytes = 64 << 20
)

// Pipeline owns the store and lazily built providers for one process
type Pipeline struct {
	cfg     *model.Config
	log     *logger.Logger
	store   *store.DB
	cache   cache.Cache
	limiter *worker.Limiter
	source  *Source

	mu       sync.Mutex
	embedder *embedding.Service
	provider llm.Provider
}

// NewPipeline opens the store described by cfg. Providers are created on
// first use so that commands which need none work without credentials.
func NewPipeline(cfg *model.Config, log *logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:     cfg,
		log:     log,
		store:   db,
		cache:   cache.New(cfg.Cache),
		limiter: worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		source:  NewSource(importTimeout, userAgent, importMaxBytes),
	}, nil
}

// Close releases the store.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Store exposes the underlying store for read-only reporting.
func (p *Pipeline) Store() *store.DB {
	return p.store
}

func (p *Pipeline) embeddingService() (*embedding.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedder != nil {
		return p.embedder, nil
	}
	e, err := llm.NewEmbedder(llm.EmbeddingConfigFromModel(p.cfg.Embedding))
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	p.embedder = embedding.NewService(e, p.cache, p.limiter, p.log)
	return p.embedder, nil
}

func (p *Pipeline) llmProvider() (llm.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider != nil {
		return p.provider, nil
	}
	prov, err := llm.NewProvider(llm.ConfigFromModel(p.cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	p.provider = prov
	return prov, nil
}

// Synthesize runs one theme synthesis pass. It is safe to call concurrently
// for different projects.
func (p *Pipeline) Synthesize(ctx context.Context, req model.SynthesisRequest) (*model.SynthesisResult, error) {
	emb, err := p.embeddingService()
	if err != nil {
		return nil, err
	}
	prov, err := p.llmProvider()
	if err != nil {
		return nil, err
	}
	s := synth.NewSynthesizer(p.store, emb, llm.NewThemeGenerator(prov), p.cfg.Synthesis, p.log)
	return s.Run(ctx, req)
}

// GeneratePersonas runs persona generation for a project. The embedding
// provider is only required by the embedding dedup strategy.
func (p *Pipeline) GeneratePersonas(ctx context.Context, req model.PersonaRequest) (*model.PersonaResult, error) {
	prov, err := p.llmProvider()
	if err != nil {
		return nil, err
	}
	var emb persona.Embedder
	if p.cfg.Persona.Dedup == model.PersonaDedupEmbedding {
		svc, err := p.embeddingService()
		if err != nil {
			return nil, err
		}
		emb = svc
	}
	cmp, err := persona.NewComparator(p.cfg.Persona, p.cfg.Synthesis.DedupThreshold, emb)
	if err != nil {
		return nil, err
	}
	g := persona.NewGenerator(p.store, llm.NewPersonaDescriber(prov), cmp, p.cfg.Persona, p.log)
	return g.Run(ctx, req)
}

// Themes lists the stored themes of scope, oldest first, with their link
// counts.
func (p *Pipeline) Themes(ctx context.Context, scope model.Scope) ([]model.ThemeSummary, error) {
	themes, err := p.store.ListThemes(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]model.ThemeSummary, 0, len(themes))
	for _, t := range themes {
		n, err := p.store.CountThemeEvidence(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ThemeSummary{Theme: t, LinkCount: n})
	}
	return out, nil
}

// Import loads the dataset at location (file path or URL) into scope.
func (p *Pipeline) Import(ctx context.Context, scope model.Scope, location string) (model.ImportStats, error) {
	ds, err := p.source.Load(ctx, location)
	if err != nil {
		return model.ImportStats{}, err
	}
	stats, err := p.store.Import(ctx, scope, ds)
	if err != nil {
		return stats, err
	}
	p.log.Info("dataset imported", "project_id", scope.ProjectID, "evidence", stats.Evidence,
		"facets", stats.Facets, "people", stats.People)
	return stats, nil
}

// Backfill embeds up to limit evidence rows of a project that have no vector.
// workers overrides the configured pool size when positive.
func (p *Pipeline) Backfill(ctx context.Context, projectID string, limit, workers int) (backfill.Stats, error) {
	emb, err := p.embeddingService()
	if err != nil {
		return backfill.Stats{}, err
	}
	if workers <= 0 {
		workers = p.cfg.Concurrency.Workers
	}
	return backfill.New(p.store, emb, worker.NewPool(workers), p.log).Run(ctx, projectID, limit)
}
