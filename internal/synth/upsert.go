package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
)

// ThemeUpserter resolves a candidate to a theme row: exact name, then
// semantic match, then create.
type ThemeUpserter struct {
	store    Store
	embedder Embedder
	cfg      model.SynthesisConfig
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

// NewThemeUpserter builds an upserter using the dedup threshold in cfg.
func NewThemeUpserter(store Store, embedder Embedder, cfg model.SynthesisConfig, log *logger.Logger) *ThemeUpserter {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThemeUpserter{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Upsert returns the theme the candidate resolved to and how. Store errors
// are returned; embedding failures only skip the semantic tier.
func (u *ThemeUpserter) Upsert(ctx context.Context, scope model.Scope, c model.ThemeCandidate) (*model.Theme, model.Resolution, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, "", fmt.Errorf("upsert theme: candidate has no name")
	}
	log := u.log.With("candidate", c.Name)

	existing, err := u.store.FindThemeByName(ctx, scope, c.Name)
	if err != nil {
		return nil, "", fmt.Errorf("find theme by name: %w", err)
	}
	if existing != nil {
		merged := MergeExact(*existing, c)
		if Changed(*existing, merged) {
			if err := u.store.UpdateTheme(ctx, &merged); err != nil {
				return nil, "", fmt.Errorf("update theme %s: %w", merged.ID, err)
			}
		}
		log.Debug("theme matched by name", "theme_id", merged.ID)
		return &merged, model.ResolutionExact, nil
	}

	searchText := c.DedupText()
	var vec []float32

	if u.semanticAllowed(scope) {
		vec = u.embedder.Embed(ctx, searchText, "theme-dedup")
		if vec == nil {
			log.Warn("theme embedding unavailable, skipping semantic dedup")
		} else {
			theme, err := u.semanticMatch(ctx, scope, c, vec)
			if err != nil {
				return nil, "", err
			}
			if theme != nil {
				log.Info("theme merged by similarity", "theme_id", theme.ID, "theme", theme.Name)
				return theme, model.ResolutionSemantic, nil
			}
		}
	} else {
		log.Debug("semantic dedup skipped for account-wide scope")
	}

	if vec == nil {
		vec = u.embedder.Embed(ctx, searchText, "theme-create")
	}

	now := u.now()
	theme := &model.Theme{
		ID:                u.newID(),
		AccountID:         scope.AccountID,
		ProjectID:         scope.ProjectID,
		Name:              c.Name,
		Statement:         c.Statement,
		InclusionCriteria: c.InclusionCriteria,
		ExclusionCriteria: c.ExclusionCriteria,
		Synonyms:          union(nil, c.Synonyms, c.Name),
		AntiExamples:      union(nil, c.AntiExamples, ""),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if vec != nil {
		theme.Embedding = vec
		theme.EmbeddingModel = u.embedder.Model()
		theme.EmbeddingGeneratedAt = &now
	} else {
		log.Warn("creating theme without embedding")
	}

	if err := u.store.InsertTheme(ctx, theme); err != nil {
		return nil, "", fmt.Errorf("insert theme: %w", err)
	}
	log.Info("theme created", "theme_id", theme.ID)
	return theme, model.ResolutionCreated, nil
}

func (u *ThemeUpserter) semanticAllowed(scope model.Scope) bool {
	return scope.HasProject() || u.cfg.AccountWideSemanticDedup
}

func (u *ThemeUpserter) semanticMatch(ctx context.Context, scope model.Scope, c model.ThemeCandidate, vec []float32) (*model.Theme, error) {
	matches, err := u.store.SearchThemes(ctx, vec, scope, u.cfg.DedupThreshold, 1)
	if err != nil {
		return nil, fmt.Errorf("search similar themes: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	existing, err := u.store.GetTheme(ctx, matches[0].ID)
	if err != nil {
		return nil, fmt.Errorf("get theme %s: %w", matches[0].ID, err)
	}
	merged := MergeSemantic(*existing, c)
	if Changed(*existing, merged) {
		if err := u.store.UpdateTheme(ctx, &merged); err != nil {
			return nil, fmt.Errorf("update theme %s: %w", merged.ID, err)
		}
	}
	u.log.Debug("semantic match", "candidate", c.Name, "theme_id", merged.ID, "similarity", matches[0].Similarity)
	return &merged, nil
}
