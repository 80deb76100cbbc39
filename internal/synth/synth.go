// Package synth turns project evidence into deduplicated, evidence-linked
// themes. A run loads evidence, asks a generator for theme candidates, and
// resolves each candidate against existing themes (exact name, then embedding
// similarity, then create) before linking matching evidence to it.
//
// Candidates are processed one at a time so that each upsert sees the themes
// created by the ones before it.
package synth

import (
	"context"
	"errors"

	"github.com/ppiankov/thematic/internal/model"
)

var (
	// ErrNoEvidence is returned when the scope has no usable evidence. It is
	// raised before the generator is called.
	ErrNoEvidence = errors.New("no evidence found")

	// ErrGeneratorFailed wraps any failure of the candidate generator.
	ErrGeneratorFailed = errors.New("theme generation failed")

	// ErrEmbeddingUnavailable is returned by the linker when the query text
	// could not be embedded.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Store is the persistence the pipeline needs
type Store interface {
	ListEvidence(ctx context.Context, q model.EvidenceQuery) ([]model.Evidence, error)
	ListEvidenceFacets(ctx context.Context, evidenceIDs []string) ([]model.EvidenceFacet, error)

	FindThemeByName(ctx context.Context, scope model.Scope, name string) (*model.Theme, error)
	GetTheme(ctx context.Context, id string) (*model.Theme, error)
	InsertTheme(ctx context.Context, t *model.Theme) error
	UpdateTheme(ctx context.Context, t *model.Theme) error

	SearchThemes(ctx context.Context, query []float32, scope model.Scope, threshold float64, topK int) ([]model.Match, error)
	SearchEvidence(ctx context.Context, query []float32, scope model.Scope, threshold float64, topK int) ([]model.Match, error)

	UpsertThemeEvidence(ctx context.Context, link *model.ThemeEvidence) error
}

// Embedder returns a vector for text, or nil when one cannot be produced.
type Embedder interface {
	Embed(ctx context.Context, text, label string) []float32
	Model() string
}

// Generator proposes theme candidates for a JSON array of enriched evidence.
type Generator interface {
	ProposeThemes(ctx context.Context, evidenceJSON, guidance string) ([]model.ThemeCandidate, error)
}
