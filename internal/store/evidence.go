package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ppiankov/thematic/internal/model"
)

const evidenceColumns = `id, account_id, project_id, verbatim, is_question,
	embedding, embedding_model, embedding_generated_at, created_at`

// InsertEvidence inserts an evidence row. Evidence is immutable; inserting an
// existing id is an error.
func (db *DB) InsertEvidence(ctx context.Context, e *model.Evidence) error {
	inserted, err := insertEvidence(ctx, db.conn, e)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("store: insert evidence: %s already exists", e.ID)
	}
	return nil
}

// insertEvidence writes e unless its id is already stored and reports
// whether a row was written.
func insertEvidence(ctx context.Context, ex execer, e *model.Evidence) (bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var isQuestion any
	if e.IsQuestion != nil {
		isQuestion = *e.IsQuestion
	}
	emb, err := encodeVector(e.Embedding)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, `
		INSERT INTO evidence (`+evidenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.AccountID, e.ProjectID, e.Verbatim, isQuestion,
		emb, nullable(e.EmbeddingModel), e.EmbeddingGeneratedAt, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("store: insert evidence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert evidence: %w", err)
	}
	return n > 0, nil
}

// InsertEvidenceFacet attaches a facet tag to an evidence row.
func (db *DB) InsertEvidenceFacet(ctx context.Context, f model.EvidenceFacet) error {
	return insertEvidenceFacet(ctx, db.conn, f)
}

func insertEvidenceFacet(ctx context.Context, ex execer, f model.EvidenceFacet) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO evidence_facet (evidence_id, project_id, person_id, kind_slug, label)
		VALUES (?, ?, ?, ?, ?)
	`, f.EvidenceID, nullable(f.ProjectID), nullable(f.PersonID), nullable(f.KindSlug), nullable(f.Label))
	if err != nil {
		return fmt.Errorf("store: insert evidence facet: %w", err)
	}
	return nil
}

// ListEvidence returns non-question evidence for a project. With explicit IDs
// it returns exactly those rows; otherwise the newest rows up to Limit.
func (db *DB) ListEvidence(ctx context.Context, q model.EvidenceQuery) ([]model.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence
		WHERE project_id = ? AND (is_question IS NULL OR is_question = 0)`
	args := []any{q.ProjectID}

	if len(q.IDs) > 0 {
		query += ` AND id IN (` + placeholders(len(q.IDs)) + `) ORDER BY created_at DESC, id`
		args = append(args, stringArgs(q.IDs)...)
	} else {
		query += ` ORDER BY created_at DESC, id`
		if q.Limit > 0 {
			query += ` LIMIT ?`
			args = append(args, q.Limit)
		}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list evidence: %w", err)
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListEvidenceFacets returns the facet links of the given evidence ids. The
// caller is responsible for keeping the id list small.
func (db *DB) ListEvidenceFacets(ctx context.Context, evidenceIDs []string) ([]model.EvidenceFacet, error) {
	if len(evidenceIDs) == 0 {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT evidence_id, project_id, person_id, kind_slug, label
		FROM evidence_facet
		WHERE evidence_id IN (`+placeholders(len(evidenceIDs))+`)
		ORDER BY id
	`, stringArgs(evidenceIDs)...)
	if err != nil {
		return nil, fmt.Errorf("store: list evidence facets: %w", err)
	}
	defer rows.Close()
	return scanFacets(rows)
}

// ListEvidenceMissingEmbeddings returns project evidence that has no vector yet.
func (db *DB) ListEvidenceMissingEmbeddings(ctx context.Context, projectID string, limit int) ([]model.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence
		WHERE project_id = ? AND embedding IS NULL AND verbatim != ''
		ORDER BY created_at DESC, id`
	args := []any{projectID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list evidence without embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SetEvidenceEmbedding stores a vector for an evidence row.
func (db *DB) SetEvidenceEmbedding(ctx context.Context, evidenceID string, vec []float32, embeddingModel string) error {
	emb, err := encodeVector(vec)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE evidence SET embedding = ?, embedding_model = ?, embedding_generated_at = ?
		WHERE id = ?
	`, emb, nullable(embeddingModel), time.Now().UTC(), evidenceID)
	if err != nil {
		return fmt.Errorf("store: set evidence embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: evidence %s: %w", evidenceID, ErrNotFound)
	}
	return nil
}

// SearchEvidence ranks embedded, non-question evidence of the scope's project
// by similarity to query. Only rows at or above threshold are returned.
func (db *DB) SearchEvidence(ctx context.Context, query []float32, scope model.Scope, threshold float64, topK int) ([]model.Match, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, embedding FROM evidence
		WHERE project_id = ? AND embedding IS NOT NULL
		  AND (is_question IS NULL OR is_question = 0)
	`, scope.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("store: search evidence: %w", err)
	}
	defer rows.Close()

	r := newRanker(query, threshold)
	for rows.Next() {
		var (
			id  string
			raw sql.NullString
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("store: scan evidence embedding: %w", err)
		}
		vec, err := decodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("store: evidence %s: %w", id, err)
		}
		r.offer(id, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.top(topK), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvidence(row rowScanner) (*model.Evidence, error) {
	var (
		e           model.Evidence
		isQuestion  sql.NullBool
		rawEmb      sql.NullString
		embModel    sql.NullString
		generatedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.ProjectID, &e.Verbatim, &isQuestion,
		&rawEmb, &embModel, &generatedAt, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: scan evidence: %w", err)
	}
	if isQuestion.Valid {
		q := isQuestion.Bool
		e.IsQuestion = &q
	}
	vec, err := decodeVector(rawEmb)
	if err != nil {
		return nil, fmt.Errorf("store: evidence %s: %w", e.ID, err)
	}
	e.Embedding = vec
	e.EmbeddingModel = embModel.String
	if generatedAt.Valid {
		t := generatedAt.Time
		e.EmbeddingGeneratedAt = &t
	}
	return &e, nil
}

func scanFacets(rows *sql.Rows) ([]model.EvidenceFacet, error) {
	var out []model.EvidenceFacet
	for rows.Next() {
		var (
			f                                model.EvidenceFacet
			projectID, personID, kind, label sql.NullString
		)
		if err := rows.Scan(&f.EvidenceID, &projectID, &personID, &kind, &label); err != nil {
			return nil, fmt.Errorf("store: scan facet: %w", err)
		}
		f.ProjectID = projectID.String
		f.PersonID = personID.String
		f.KindSlug = kind.String
		f.Label = label.String
		out = append(out, f)
	}
	return out, rows.Err()
}
