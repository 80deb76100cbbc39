package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/thematic/internal/model"
)

// UpsertThemeEvidence creates or refreshes the link keyed by
// (theme_id, evidence_id, account_id). On conflict the existing row keeps its
// id and created_at; rationale, confidence and updated_at are overwritten.
// The stored row is written back into link.
func (db *DB) UpsertThemeEvidence(ctx context.Context, link *model.ThemeEvidence) error {
	now := time.Now().UTC()
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO theme_evidence (id, account_id, project_id, theme_id, evidence_id,
			rationale, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(theme_id, evidence_id, account_id) DO UPDATE SET
			rationale  = excluded.rationale,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, link.ID, link.AccountID, nullable(link.ProjectID), link.ThemeID, link.EvidenceID,
		link.Rationale, link.Confidence, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert theme evidence: %w", err)
	}
	err = db.conn.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at FROM theme_evidence
		WHERE theme_id = ? AND evidence_id = ? AND account_id = ?
	`, link.ThemeID, link.EvidenceID, link.AccountID).Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: reload theme evidence: %w", err)
	}
	return nil
}

// ListThemeEvidence returns the links of a theme, strongest first.
func (db *DB) ListThemeEvidence(ctx context.Context, themeID string) ([]model.ThemeEvidence, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, account_id, project_id, theme_id, evidence_id, rationale, confidence,
			created_at, updated_at
		FROM theme_evidence
		WHERE theme_id = ?
		ORDER BY confidence DESC, evidence_id
	`, themeID)
	if err != nil {
		return nil, fmt.Errorf("store: list theme evidence: %w", err)
	}
	defer rows.Close()

	var out []model.ThemeEvidence
	for rows.Next() {
		var (
			l                    model.ThemeEvidence
			projectID, rationale sql.NullString
			confidence           sql.NullFloat64
		)
		if err := rows.Scan(&l.ID, &l.AccountID, &projectID, &l.ThemeID, &l.EvidenceID,
			&rationale, &confidence, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan theme evidence: %w", err)
		}
		l.ProjectID = projectID.String
		l.Rationale = rationale.String
		l.Confidence = confidence.Float64
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountThemeEvidence returns the number of links stored for a theme.
func (db *DB) CountThemeEvidence(ctx context.Context, themeID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM theme_evidence WHERE theme_id = ?`, themeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count theme evidence: %w", err)
	}
	return n, nil
}
