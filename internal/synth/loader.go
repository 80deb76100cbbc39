package synth

import (
	"context"
	"fmt"

	"github.com/ppiankov/thematic/internal/model"
)

// EvidenceLoader reads project evidence and attaches facet tags
type EvidenceLoader struct {
	store     Store
	chunkSize int
}

// NewEvidenceLoader returns a loader that looks up facets chunkSize ids at a time.
func NewEvidenceLoader(store Store, chunkSize int) *EvidenceLoader {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &EvidenceLoader{store: store, chunkSize: chunkSize}
}

// Load returns non-question evidence for the scope's project. Without a
// project it returns nothing and touches no storage. Any query error fails
// the whole call.
func (l *EvidenceLoader) Load(ctx context.Context, scope model.Scope, evidenceIDs []string, limit int) ([]model.EnrichedEvidence, error) {
	if !scope.HasProject() {
		return []model.EnrichedEvidence{}, nil
	}

	rows, err := l.store.ListEvidence(ctx, model.EvidenceQuery{
		ProjectID: scope.ProjectID,
		IDs:       evidenceIDs,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}
	if len(rows) == 0 {
		return []model.EnrichedEvidence{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	tags := make(map[string][]string, len(rows))
	seen := make(map[string]map[string]bool, len(rows))
	for start := 0; start < len(ids); start += l.chunkSize {
		end := min(start+l.chunkSize, len(ids))
		facets, err := l.store.ListEvidenceFacets(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("load evidence facets: %w", err)
		}
		for _, f := range facets {
			tag := f.Tag()
			if tag == "" {
				continue
			}
			if seen[f.EvidenceID] == nil {
				seen[f.EvidenceID] = make(map[string]bool)
			}
			if seen[f.EvidenceID][tag] {
				continue
			}
			seen[f.EvidenceID][tag] = true
			tags[f.EvidenceID] = append(tags[f.EvidenceID], tag)
		}
	}

	out := make([]model.EnrichedEvidence, len(rows))
	for i, r := range rows {
		t := tags[r.ID]
		if t == nil {
			t = []string{}
		}
		out[i] = model.EnrichedEvidence{ID: r.ID, Verbatim: r.Verbatim, Tags: t}
	}
	return out, nil
}
