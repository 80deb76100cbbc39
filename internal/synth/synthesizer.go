package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
)

// Synthesizer runs one synthesis pass over a scope
type Synthesizer struct {
	loader    *EvidenceLoader
	generator Generator
	upserter  *ThemeUpserter
	linker    *EvidenceLinker
	cfg       model.SynthesisConfig
	log       *logger.Logger
}

// NewSynthesizer wires the pipeline stages around store, embedder and generator.
func NewSynthesizer(store Store, embedder Embedder, generator Generator, cfg model.SynthesisConfig, log *logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Synthesizer{
		loader:    NewEvidenceLoader(store, cfg.FacetChunkSize),
		generator: generator,
		upserter:  NewThemeUpserter(store, embedder, cfg, log),
		linker:    NewEvidenceLinker(store, embedder, cfg, log),
		cfg:       cfg,
		log:       log,
	}
}

// Run loads evidence, generates candidates and resolves each one in order.
// Missing evidence and generator failures abort the run; a failing candidate
// is logged and skipped.
func (s *Synthesizer) Run(ctx context.Context, req model.SynthesisRequest) (*model.SynthesisResult, error) {
	log := s.log.With("account_id", req.Scope.AccountID, "project_id", req.Scope.ProjectID)

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.EvidenceLimit
	}

	evidence, err := s.loader.Load(ctx, req.Scope, req.EvidenceIDs, limit)
	if err != nil {
		return nil, err
	}
	if len(evidence) == 0 {
		return nil, fmt.Errorf("%w for project %q: cannot generate themes without evidence data", ErrNoEvidence, req.Scope.ProjectID)
	}
	log.Info("evidence loaded", "count", len(evidence))

	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("encode evidence: %w", err)
	}

	candidates, err := s.generator.ProposeThemes(ctx, string(evidenceJSON), req.Guidance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneratorFailed, err)
	}
	log.Info("theme candidates proposed", "count", len(candidates))

	result := &model.SynthesisResult{
		CreatedThemeIDs: []string{},
		Themes:          []model.Theme{},
		Candidates:      len(candidates),
	}
	themeIndex := make(map[string]int)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		theme, resolution, err := s.upserter.Upsert(ctx, req.Scope, c)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Error("theme upsert failed, skipping candidate", "candidate", c.Name, "error", err)
			result.Skipped++
			continue
		}

		if i, ok := themeIndex[theme.ID]; ok {
			result.Themes[i] = *theme
		} else {
			themeIndex[theme.ID] = len(result.Themes)
			result.CreatedThemeIDs = append(result.CreatedThemeIDs, theme.ID)
			result.Themes = append(result.Themes, *theme)
		}

		links, err := s.linker.Link(ctx, req.Scope, theme, c.LinkText())
		if err != nil {
			log.Warn("evidence linking failed", "candidate", c.Name, "theme_id", theme.ID, "error", err)
			continue
		}
		result.LinkCount += len(links)
		log.Debug("candidate resolved", "candidate", c.Name, "theme_id", theme.ID,
			"resolution", string(resolution), "links", len(links))
	}

	log.Info("synthesis complete", "themes", len(result.CreatedThemeIDs),
		"links", result.LinkCount, "skipped", result.Skipped)
	return result, nil
}
