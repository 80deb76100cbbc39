// Package backfill embeds stored evidence that has no vector yet, so that it
// can be found by the evidence linker.
package backfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/worker"
)

var errNoVector = errors.New("no embedding returned")

// Store reads evidence without vectors and writes vectors back
type Store interface {
	ListEvidenceMissingEmbeddings(ctx context.Context, projectID string, limit int) ([]model.Evidence, error)
	SetEvidenceEmbedding(ctx context.Context, evidenceID string, vec []float32, embeddingModel string) error
}

// Embedder returns a vector for text, or nil when none can be produced
type Embedder interface {
	Embed(ctx context.Context, text, label string) []float32
	Model() string
}

// Stats summarizes one backfill run
type Stats struct {
	Pending  int `json:"pending"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Backfiller embeds evidence on a worker pool
type Backfiller struct {
	store    Store
	embedder Embedder
	pool     *worker.Pool
	log      *logger.Logger
}

func New(store Store, embedder Embedder, pool *worker.Pool, log *logger.Logger) *Backfiller {
	if log == nil {
		log = logger.NewNop()
	}
	if pool == nil {
		pool = worker.NewPool(1)
	}
	return &Backfiller{store: store, embedder: embedder, pool: pool, log: log}
}

// Run embeds up to limit evidence rows of the project that have no vector.
// Rows that fail are counted and left for the next run.
func (b *Backfiller) Run(ctx context.Context, projectID string, limit int) (Stats, error) {
	var stats Stats
	if projectID == "" {
		return stats, fmt.Errorf("backfill requires a project")
	}

	pending, err := b.store.ListEvidenceMissingEmbeddings(ctx, projectID, limit)
	if err != nil {
		return stats, fmt.Errorf("list evidence to embed: %w", err)
	}
	stats.Pending = len(pending)
	if len(pending) == 0 {
		return stats, nil
	}
	b.log.Info("embedding evidence", "project_id", projectID, "count", len(pending), "workers", b.pool.Workers())

	outcomes := worker.Map(ctx, b.pool, pending, func(ctx context.Context, e model.Evidence) (struct{}, error) {
		vec := b.embedder.Embed(ctx, e.Verbatim, "evidence-backfill")
		if vec == nil {
			return struct{}{}, errNoVector
		}
		return struct{}{}, b.store.SetEvidenceEmbedding(ctx, e.ID, vec, b.embedder.Model())
	})

	for _, o := range outcomes {
		if o.Err != nil {
			stats.Failed++
			b.log.Warn("evidence embedding failed", "evidence_id", o.Item.ID, "error", o.Err)
			continue
		}
		stats.Embedded++
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}
