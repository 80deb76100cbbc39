package synth

import (
	"context"
	"fmt"
	"math"

	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
)

// EvidenceLinker attaches evidence similar to a search text to a theme
type EvidenceLinker struct {
	store    Store
	embedder Embedder
	cfg      model.SynthesisConfig
	log      *logger.Logger
}

// NewEvidenceLinker builds a linker using the link threshold and cap in cfg.
func NewEvidenceLinker(store Store, embedder Embedder, cfg model.SynthesisConfig, log *logger.Logger) *EvidenceLinker {
	if log == nil {
		log = logger.NewNop()
	}
	return &EvidenceLinker{store: store, embedder: embedder, cfg: cfg, log: log}
}

// Link upserts a link from theme to every evidence item whose embedding is
// similar enough to searchText. It fails only when the search text cannot be
// embedded or the search itself fails; individual link failures are logged
// and skipped.
func (l *EvidenceLinker) Link(ctx context.Context, scope model.Scope, theme *model.Theme, searchText string) ([]model.ThemeEvidence, error) {
	vec := l.embedder.Embed(ctx, searchText, "evidence-link")
	if vec == nil {
		return nil, fmt.Errorf("link evidence to theme %s: %w", theme.ID, ErrEmbeddingUnavailable)
	}

	matches, err := l.store.SearchEvidence(ctx, vec, scope, l.cfg.LinkThreshold, l.cfg.MaxLinksPerTheme)
	if err != nil {
		return nil, fmt.Errorf("search evidence for theme %s: %w", theme.ID, err)
	}

	links := make([]model.ThemeEvidence, 0, len(matches))
	for _, m := range matches {
		link := &model.ThemeEvidence{
			AccountID:  scope.AccountID,
			ProjectID:  scope.ProjectID,
			ThemeID:    theme.ID,
			EvidenceID: m.ID,
			Rationale:  Rationale(m.Similarity),
			Confidence: m.Similarity,
		}
		if err := l.store.UpsertThemeEvidence(ctx, link); err != nil {
			l.log.Warn("evidence link failed", "theme_id", theme.ID, "evidence_id", m.ID, "error", err)
			continue
		}
		links = append(links, *link)
	}
	return links, nil
}

// Rationale renders a similarity score as a human-readable link reason.
func Rationale(similarity float64) string {
	return fmt.Sprintf("Semantic match (%d%%)", int(math.Round(similarity*100)))
}
