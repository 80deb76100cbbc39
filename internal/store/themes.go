package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/thematic/internal/model"
)

const themeColumns = `id, account_id, project_id, name, statement, inclusion_criteria,
	exclusion_criteria, synonyms, anti_examples, embedding, embedding_model,
	embedding_generated_at, created_at, updated_at`

// FindThemeByName returns the theme in scope whose name equals name exactly,
// or nil when there is none. An empty project matches account-wide themes only.
func (db *DB) FindThemeByName(ctx context.Context, scope model.Scope, name string) (*model.Theme, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+themeColumns+` FROM themes
		WHERE account_id = ? AND project_id IS ? AND name = ?
		ORDER BY created_at, id
		LIMIT 1
	`, scope.AccountID, nullable(scope.ProjectID), name)

	t, err := scanTheme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTheme loads a theme by id.
func (db *DB) GetTheme(ctx context.Context, id string) (*model.Theme, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = ?`, id)
	t, err := scanTheme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: theme %s: %w", id, ErrNotFound)
	}
	return t, err
}

// InsertTheme inserts a new theme row. Nil list fields are stored as [].
func (db *DB) InsertTheme(ctx context.Context, t *model.Theme) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	args, err := themeArgs(t)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO themes (`+themeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{t.ID, t.AccountID, nullable(t.ProjectID)}, append(args, t.CreatedAt, t.UpdatedAt)...)...)
	if err != nil {
		return fmt.Errorf("store: insert theme: %w", err)
	}
	return nil
}

// UpdateTheme overwrites the mutable fields of an existing theme and bumps
// updated_at. Identity and scope never change.
func (db *DB) UpdateTheme(ctx context.Context, t *model.Theme) error {
	t.UpdatedAt = time.Now().UTC()
	args, err := themeArgs(t)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE themes SET name = ?, statement = ?, inclusion_criteria = ?,
			exclusion_criteria = ?, synonyms = ?, anti_examples = ?, embedding = ?,
			embedding_model = ?, embedding_generated_at = ?, updated_at = ?
		WHERE id = ?
	`, append(args, t.UpdatedAt, t.ID)...)
	if err != nil {
		return fmt.Errorf("store: update theme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: theme %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// ListThemes returns the themes of a scope, oldest first.
func (db *DB) ListThemes(ctx context.Context, scope model.Scope) ([]model.Theme, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+themeColumns+` FROM themes
		WHERE account_id = ? AND project_id IS ?
		ORDER BY created_at, id
	`, scope.AccountID, nullable(scope.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("store: list themes: %w", err)
	}
	defer rows.Close()

	var out []model.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SearchThemes ranks embedded themes of the scope by similarity to query.
func (db *DB) SearchThemes(ctx context.Context, query []float32, scope model.Scope, threshold float64, topK int) ([]model.Match, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, embedding FROM themes
		WHERE account_id = ? AND project_id IS ? AND embedding IS NOT NULL
	`, scope.AccountID, nullable(scope.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("store: search themes: %w", err)
	}
	defer rows.Close()

	r := newRanker(query, threshold)
	for rows.Next() {
		var (
			id  string
			raw sql.NullString
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("store: scan theme embedding: %w", err)
		}
		vec, err := decodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("store: theme %s: %w", id, err)
		}
		r.offer(id, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.top(topK), nil
}

// themeArgs returns the mutable columns in UPDATE order, name through
// embedding_generated_at.
func themeArgs(t *model.Theme) ([]any, error) {
	synonyms, err := encodeList(t.Synonyms)
	if err != nil {
		return nil, err
	}
	antiExamples, err := encodeList(t.AntiExamples)
	if err != nil {
		return nil, err
	}
	emb, err := encodeVector(t.Embedding)
	if err != nil {
		return nil, err
	}
	return []any{
		t.Name, nullable(t.Statement), nullable(t.InclusionCriteria),
		nullable(t.ExclusionCriteria), synonyms, antiExamples, emb,
		nullable(t.EmbeddingModel), t.EmbeddingGeneratedAt,
	}, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("store: encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("store: decode list: %w", err)
	}
	return out, nil
}

func scanTheme(row rowScanner) (*model.Theme, error) {
	var (
		t                                        model.Theme
		projectID, statement, incl, excl, embMdl sql.NullString
		synonyms, antiExamples                   string
		rawEmb                                   sql.NullString
		generatedAt                              sql.NullTime
	)
	err := row.Scan(&t.ID, &t.AccountID, &projectID, &t.Name, &statement, &incl, &excl,
		&synonyms, &antiExamples, &rawEmb, &embMdl, &generatedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan theme: %w", err)
	}
	t.ProjectID = projectID.String
	t.Statement = statement.String
	t.InclusionCriteria = incl.String
	t.ExclusionCriteria = excl.String
	t.EmbeddingModel = embMdl.String
	if generatedAt.Valid {
		ts := generatedAt.Time
		t.EmbeddingGeneratedAt = &ts
	}
	if t.Synonyms, err = decodeList(synonyms); err != nil {
		return nil, err
	}
	if t.AntiExamples, err = decodeList(antiExamples); err != nil {
		return nil, err
	}
	if t.Embedding, err = decodeVector(rawEmb); err != nil {
		return nil, fmt.Errorf("store: theme %s: %w", t.ID, err)
	}
	return &t, nil
}
