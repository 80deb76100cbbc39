package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/thematic/internal/model"
)

// Import writes a dataset into scope inside one transaction. Evidence rows
// whose id already exists are skipped together with their facets, so
// re-importing the same file is harmless.
func (db *DB) Import(ctx context.Context, scope model.Scope, ds *model.Dataset) (model.ImportStats, error) {
	var stats model.ImportStats
	if !scope.HasProject() {
		return stats, fmt.Errorf("store: import requires a project")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("store: begin import: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, ev := range ds.Evidence {
		e := &model.Evidence{
			ID:         ev.ID,
			AccountID:  scope.AccountID,
			ProjectID:  scope.ProjectID,
			Verbatim:   ev.Verbatim,
			IsQuestion: ev.IsQuestion,
			// keeps file order stable under newest-first listing
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if ev.CreatedAt != nil {
			e.CreatedAt = ev.CreatedAt.UTC()
		}
		inserted, err := insertEvidence(ctx, tx, e)
		if err != nil {
			return stats, fmt.Errorf("store: import evidence %d: %w", i, err)
		}
		if !inserted {
			continue
		}
		stats.Evidence++

		for _, f := range ev.Facets {
			facet := model.EvidenceFacet{
				EvidenceID: e.ID,
				ProjectID:  scope.ProjectID,
				PersonID:   f.PersonID,
				KindSlug:   f.KindSlug,
				Label:      f.Label,
			}
			if err := insertEvidenceFacet(ctx, tx, facet); err != nil {
				return stats, fmt.Errorf("store: import facet of %s: %w", e.ID, err)
			}
			stats.Facets++
		}
	}

	for _, p := range ds.People {
		if p.ID == "" {
			return stats, fmt.Errorf("store: import person without id")
		}
		inserted, err := insertPerson(ctx, tx, model.Person{
			ID: p.ID, AccountID: scope.AccountID, ProjectID: scope.ProjectID, Name: p.Name,
		})
		if err != nil {
			return stats, fmt.Errorf("store: import person %s: %w", p.ID, err)
		}
		if !inserted {
			continue
		}
		stats.People++

		for _, f := range p.Facets {
			f.PersonID = p.ID
			if err := insertPersonFacet(ctx, tx, scope.ProjectID, f); err != nil {
				return stats, fmt.Errorf("store: import facet of person %s: %w", p.ID, err)
			}
		}
		for _, s := range p.Scales {
			s.PersonID = p.ID
			if err := insertPersonScale(ctx, tx, s); err != nil {
				return stats, fmt.Errorf("store: import scale of person %s: %w", p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("store: commit import: %w", err)
	}
	return stats, nil
}
