package model

import "time"

// Dataset is the import format for evidence, facets and people. IDs are
// caller-assigned so re-imports can be detected; missing evidence IDs are
// generated on import.
type Dataset struct {
	Evidence []DatasetEvidence `json:"evidence"`
	People   []DatasetPerson   `json:"people,omitempty"`
}

// DatasetEvidence is one evidence row with its facet tags
type DatasetEvidence struct {
	ID         string         `json:"id,omitempty"`
	Verbatim   string         `json:"verbatim"`
	IsQuestion *bool          `json:"is_question,omitempty"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
	Facets     []DatasetFacet `json:"facets,omitempty"`
}

// DatasetFacet tags evidence, optionally on behalf of a person
type DatasetFacet struct {
	PersonID string `json:"person_id,omitempty"`
	KindSlug string `json:"kind_slug,omitempty"`
	Label    string `json:"label,omitempty"`
}

// DatasetPerson is a participant with person-level facets and scales
type DatasetPerson struct {
	ID     string        `json:"id"`
	Name   string        `json:"name,omitempty"`
	Facets []PersonFacet `json:"facets,omitempty"`
	Scales []PersonScale `json:"scales,omitempty"`
}

// ImportStats counts rows written by an import
type ImportStats struct {
	Evidence int `json:"evidence"`
	Facets   int `json:"facets"`
	People   int `json:"people"`
}
