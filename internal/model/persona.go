package model

import "time"

// PersonaKind distinguishes target personas from who-not-to-target personas
type PersonaKind string

const (
	PersonaKindCore     PersonaKind = "core"
	PersonaKindContrast PersonaKind = "contrast"
)

// PersonFacet tags a person with a demographic or behavioral facet
type PersonFacet struct {
	PersonID string `json:"person_id"`
	FacetID  int64  `json:"facet_id"`
	KindSlug string `json:"kind_slug"`
	Label    string `json:"label"`
}

// PersonScale is a numeric trait score for a person
type PersonScale struct {
	PersonID string  `json:"person_id"`
	KindSlug string  `json:"kind_slug"`
	Score    float64 `json:"score"`
}

// PersonaCluster groups people sharing the exact same facet set
type PersonaCluster struct {
	Key          string             `json:"key"`
	PeopleIDs    []string           `json:"people_ids"`
	SharedFacets []PersonFacet      `json:"shared_facets"`
	Pains        []string           `json:"pains"`
	Goals        []string           `json:"goals"`
	Behaviors    []string           `json:"behaviors"`
	Quotes       []string           `json:"quotes"`
	Scales       map[string]float64 `json:"scales"` // Average score per kind
}

// Size returns the number of people in the cluster.
func (c *PersonaCluster) Size() int {
	return len(c.PeopleIDs)
}

// PersonaDraft is a generated persona description before persistence
type PersonaDraft struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Role            string   `json:"role,omitempty"`
	Goals           []string `json:"goals,omitempty"`
	Pains           []string `json:"pains,omitempty"`
	Motivations     []string `json:"motivations,omitempty"`
	Values          []string `json:"values,omitempty"`
	Behaviors       []string `json:"behaviors,omitempty"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	Quotes          []string `json:"quotes,omitempty"`
	Differentiators []string `json:"differentiators,omitempty"`
}

// Persona is a persisted persona row
type Persona struct {
	ID        string      `json:"id"`
	AccountID string      `json:"account_id"`
	ProjectID string      `json:"project_id"`
	Kind      PersonaKind `json:"kind"`
	PersonaDraft
	CreatedAt time.Time `json:"created_at"`
}

// PersonaRequest is the input of one persona generation run
type PersonaRequest struct {
	Scope Scope `json:"scope"`
}

// PersonaResult is returned after a persona generation run
type PersonaResult struct {
	PersonaIDs  []string  `json:"persona_ids"`
	Personas    []Persona `json:"personas"`
	PeopleLinks int       `json:"people_links"`
	Clusters    int       `json:"clusters"`
}

// Person is a research participant that facets and scales attach to
type Person struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name,omitempty"`
}
