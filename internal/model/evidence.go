package model

import "time"

// Scope identifies the tenant a synthesis run works within.
// An empty ProjectID means account-wide.
type Scope struct {
	AccountID string `json:"account_id"`
	ProjectID string `json:"project_id,omitempty"`
}

// HasProject reports whether the scope is narrowed to a single project.
func (s Scope) HasProject() bool {
	return s.ProjectID != ""
}

// Evidence is an immutable atomic research observation
type Evidence struct {
	ID                   string     `json:"id"`
	AccountID            string     `json:"account_id"`
	ProjectID            string     `json:"project_id"`
	Verbatim             string     `json:"verbatim"`
	IsQuestion           *bool      `json:"is_question,omitempty"` // Interviewer prompt, not a finding
	Embedding            []float32  `json:"-"`
	EmbeddingModel       string     `json:"embedding_model,omitempty"`
	EmbeddingGeneratedAt *time.Time `json:"embedding_generated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// EvidenceFacet links one evidence row to a facet tag
type EvidenceFacet struct {
	EvidenceID string `json:"evidence_id"`
	ProjectID  string `json:"project_id,omitempty"`
	PersonID   string `json:"person_id,omitempty"`
	KindSlug   string `json:"kind_slug,omitempty"` // e.g. "pain"
	Label      string `json:"label,omitempty"`     // e.g. "slow_onboarding"
}

// Tag renders the facet as "kind_slug:label", or whichever half is present.
func (f EvidenceFacet) Tag() string {
	switch {
	case f.KindSlug != "" && f.Label != "":
		return f.KindSlug + ":" + f.Label
	case f.KindSlug != "":
		return f.KindSlug
	default:
		return f.Label
	}
}

// EnrichedEvidence is the evidence shape handed to the candidate generator
type EnrichedEvidence struct {
	ID       string   `json:"id"`
	Verbatim string   `json:"verbatim"`
	Tags     []string `json:"kind_tags"`
}

// EvidenceQuery selects evidence rows within one project
type EvidenceQuery struct {
	ProjectID string
	IDs       []string // Exact subset; when empty, newest first up to Limit
	Limit     int
}

// Match is one ranked hit from a vector similarity search
type Match struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"` // Cosine similarity in [0,1] for normalized vectors
}
