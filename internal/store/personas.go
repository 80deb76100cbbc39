package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/thematic/internal/model"
)

// InsertPerson inserts a participant. Re-inserting the same id is a no-op.
func (db *DB) InsertPerson(ctx context.Context, p model.Person) error {
	_, err := insertPerson(ctx, db.conn, p)
	return err
}

// insertPerson reports whether the person was new.
func insertPerson(ctx context.Context, ex execer, p model.Person) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO people (id, account_id, project_id, name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, p.ID, p.AccountID, p.ProjectID, p.Name)
	if err != nil {
		return false, fmt.Errorf("store: insert person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert person: %w", err)
	}
	return n > 0, nil
}

// InsertPersonFacet stores a facet of a person. A facet id already held by
// the person takes the new kind and label.
func (db *DB) InsertPersonFacet(ctx context.Context, projectID string, f model.PersonFacet) error {
	return insertPersonFacet(ctx, db.conn, projectID, f)
}

func insertPersonFacet(ctx context.Context, ex execer, projectID string, f model.PersonFacet) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO person_facet (person_id, facet_id, project_id, kind_slug, label)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(person_id, facet_id) DO UPDATE SET kind_slug = excluded.kind_slug, label = excluded.label
	`, f.PersonID, f.FacetID, projectID, f.KindSlug, f.Label)
	if err != nil {
		return fmt.Errorf("store: insert person facet: %w", err)
	}
	return nil
}

func (db *DB) InsertPersonScale(ctx context.Context, s model.PersonScale) error {
	return insertPersonScale(ctx, db.conn, s)
}

func insertPersonScale(ctx context.Context, ex execer, s model.PersonScale) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO person_scale (person_id, kind_slug, score) VALUES (?, ?, ?)
	`, s.PersonID, s.KindSlug, s.Score)
	if err != nil {
		return fmt.Errorf("store: insert person scale: %w", err)
	}
	return nil
}

// ListPersonFacets returns the person facets of a project restricted to kinds.
// An empty kinds list returns every kind.
func (db *DB) ListPersonFacets(ctx context.Context, projectID string, kinds []string) ([]model.PersonFacet, error) {
	query := `SELECT person_id, facet_id, kind_slug, label FROM person_facet WHERE project_id = ?`
	args := []any{projectID}
	if len(kinds) > 0 {
		query += ` AND kind_slug IN (` + placeholders(len(kinds)) + `)`
		args = append(args, stringArgs(kinds)...)
	}
	query += ` ORDER BY person_id, facet_id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list person facets: %w", err)
	}
	defer rows.Close()

	var out []model.PersonFacet
	for rows.Next() {
		var f model.PersonFacet
		if err := rows.Scan(&f.PersonID, &f.FacetID, &f.KindSlug, &f.Label); err != nil {
			return nil, fmt.Errorf("store: scan person facet: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListEvidenceFacetsForPeople returns evidence facets attributed to the given
// people within a project, restricted to kinds.
func (db *DB) ListEvidenceFacetsForPeople(ctx context.Context, projectID string, personIDs, kinds []string) ([]model.EvidenceFacet, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	query := `SELECT evidence_id, project_id, person_id, kind_slug, label FROM evidence_facet
		WHERE project_id = ? AND person_id IN (` + placeholders(len(personIDs)) + `)`
	args := append([]any{projectID}, stringArgs(personIDs)...)
	if len(kinds) > 0 {
		query += ` AND kind_slug IN (` + placeholders(len(kinds)) + `)`
		args = append(args, stringArgs(kinds)...)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list evidence facets for people: %w", err)
	}
	defer rows.Close()
	return scanFacets(rows)
}

// ListEvidenceQuotes returns up to limit distinct verbatims of evidence
// attributed to the given people, newest first.
func (db *DB) ListEvidenceQuotes(ctx context.Context, projectID string, personIDs []string, limit int) ([]string, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	query := `SELECT e.verbatim FROM evidence e
		WHERE e.project_id = ? AND e.verbatim != '' AND e.id IN (
			SELECT evidence_id FROM evidence_facet WHERE person_id IN (` + placeholders(len(personIDs)) + `)
		)
		ORDER BY e.created_at DESC, e.id`
	args := append([]any{projectID}, stringArgs(personIDs)...)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list evidence quotes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("store: scan quote: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (db *DB) ListPersonScales(ctx context.Context, personIDs []string) ([]model.PersonScale, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT person_id, kind_slug, score FROM person_scale
		WHERE person_id IN (`+placeholders(len(personIDs))+`)
		ORDER BY person_id, kind_slug
	`, stringArgs(personIDs)...)
	if err != nil {
		return nil, fmt.Errorf("store: list person scales: %w", err)
	}
	defer rows.Close()

	var out []model.PersonScale
	for rows.Next() {
		var s model.PersonScale
		if err := rows.Scan(&s.PersonID, &s.KindSlug, &s.Score); err != nil {
			return nil, fmt.Errorf("store: scan person scale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertPersona persists a persona. The draft is stored as a JSON body.
func (db *DB) InsertPersona(ctx context.Context, p *model.Persona) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Kind == "" {
		p.Kind = model.PersonaKindCore
	}
	body, err := json.Marshal(p.PersonaDraft)
	if err != nil {
		return fmt.Errorf("store: encode persona: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO personas (id, account_id, project_id, kind, name, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.AccountID, p.ProjectID, string(p.Kind), p.Name, string(body), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert persona: %w", err)
	}
	return nil
}

// LinkPersonaPerson records that a person is represented by a persona.
// Existing links are left untouched.
func (db *DB) LinkPersonaPerson(ctx context.Context, personaID, personID string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO persona_people (persona_id, person_id) VALUES (?, ?)
		ON CONFLICT(persona_id, person_id) DO NOTHING
	`, personaID, personID)
	if err != nil {
		return fmt.Errorf("store: link persona person: %w", err)
	}
	return nil
}

// ListPersonas returns the personas of a project, oldest first.
func (db *DB) ListPersonas(ctx context.Context, projectID string) ([]model.Persona, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, account_id, project_id, kind, body, created_at FROM personas
		WHERE project_id = ?
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list personas: %w", err)
	}
	defer rows.Close()

	var out []model.Persona
	for rows.Next() {
		var (
			p    model.Persona
			kind string
			body sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.AccountID, &p.ProjectID, &kind, &body, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan persona: %w", err)
		}
		p.Kind = model.PersonaKind(kind)
		if body.Valid && body.String != "" {
			if err := json.Unmarshal([]byte(body.String), &p.PersonaDraft); err != nil {
				return nil, fmt.Errorf("store: decode persona %s: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPersonaPeople returns the people linked to a persona.
func (db *DB) ListPersonaPeople(ctx context.Context, personaID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT person_id FROM persona_people WHERE persona_id = ? ORDER BY person_id`, personaID)
	if err != nil {
		return nil, fmt.Errorf("store: list persona people: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan persona person: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
