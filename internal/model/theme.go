package model

import (
	"strings"
	"time"
)

// Theme is a named, synthesized pattern backed by evidence
type Theme struct {
	ID                   string     `json:"id"`
	AccountID            string     `json:"account_id"`
	ProjectID            string     `json:"project_id,omitempty"` // Empty = account-wide
	Name                 string     `json:"name"`
	Statement            string     `json:"statement,omitempty"`
	InclusionCriteria    string     `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria    string     `json:"exclusion_criteria,omitempty"`
	Synonyms             []string   `json:"synonyms"`
	AntiExamples         []string   `json:"anti_examples"`
	Embedding            []float32  `json:"-"`
	EmbeddingModel       string     `json:"embedding_model,omitempty"`
	EmbeddingGeneratedAt *time.Time `json:"embedding_generated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ThemeSummary is a stored theme with the number of evidence links it holds
type ThemeSummary struct {
	Theme
	LinkCount int `json:"link_count"`
}

// ThemeCandidate is a theme proposed by the generator, not yet resolved
type ThemeCandidate struct {
	Name              string   `json:"name"`
	Statement         string   `json:"statement,omitempty"`
	InclusionCriteria string   `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria string   `json:"exclusion_criteria,omitempty"`
	Synonyms          []string `json:"synonyms,omitempty"`
	AntiExamples      []string `json:"anti_examples,omitempty"`
}

// DedupText is the text embedded to find semantically equivalent themes.
func (c ThemeCandidate) DedupText() string {
	return JoinNonEmpty(". ", c.Name, c.Statement)
}

// LinkText is the text embedded to find supporting evidence. It is built
// from the candidate, not from the theme it may have merged into.
func (c ThemeCandidate) LinkText() string {
	return JoinNonEmpty(". ", c.Statement, c.InclusionCriteria, c.Name)
}

// ThemeEvidence links one theme to one evidence item
type ThemeEvidence struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	ProjectID  string    `json:"project_id,omitempty"`
	ThemeID    string    `json:"theme_id"`
	EvidenceID string    `json:"evidence_id"`
	Rationale  string    `json:"rationale"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Resolution records which upsert tier resolved a candidate
type Resolution string

const (
	ResolutionExact    Resolution = "exact"    // Same name already in scope
	ResolutionSemantic Resolution = "semantic" // Embedding match above dedup threshold
	ResolutionCreated  Resolution = "created"  // New theme row
)

// SynthesisRequest is the input of one synthesis run
type SynthesisRequest struct {
	Scope       Scope    `json:"scope"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// SynthesisResult is returned to the caller after a run
type SynthesisResult struct {
	CreatedThemeIDs []string `json:"created_theme_ids"`
	LinkCount       int      `json:"link_count"`
	Themes          []Theme  `json:"themes"`
	Candidates      int      `json:"candidates"` // Proposed by the generator
	Skipped         int      `json:"skipped"`    // Failed to upsert
}

// JoinNonEmpty joins the trimmed non-empty parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
