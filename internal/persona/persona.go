// Package persona derives personas from people who share the same facets.
//
// People are clustered by their exact facet set, each cluster is enriched
// with the pains, goals, behaviors and quotes of its members' evidence, and a
// describer writes one persona per cluster. Near-duplicate personas are
// dropped with a configurable comparator before the survivors and one
// contrast persona are stored.
package persona

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/thematic/internal/cluster"
	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
)

// ErrNoProject is returned when a run is not scoped to a project.
var ErrNoProject = errors.New("persona generation requires a project")

// ContrastSuffix marks the name of a persona the product should not target.
const ContrastSuffix = " (Contrast - Avoid)"

const (
	maxTraits         = 5
	maxQuotes         = 3
	quoteEvidenceRows = 10
)

var evidenceKinds = []string{"pain", "goal", "behavior", "task"}

// Store is the persistence persona generation needs
type Store interface {
	ListPersonFacets(ctx context.Context, projectID string, kinds []string) ([]model.PersonFacet, error)
	ListEvidenceFacetsForPeople(ctx context.Context, projectID string, personIDs, kinds []string) ([]model.EvidenceFacet, error)
	ListEvidenceQuotes(ctx context.Context, projectID string, personIDs []string, limit int) ([]string, error)
	ListPersonScales(ctx context.Context, personIDs []string) ([]model.PersonScale, error)
	InsertPersona(ctx context.Context, p *model.Persona) error
	LinkPersonaPerson(ctx context.Context, personaID, personID string) error
}

// Describer writes persona drafts
type Describer interface {
	Describe(ctx context.Context, cluster model.PersonaCluster) (model.PersonaDraft, error)
	DescribeContrast(ctx context.Context, existing []model.PersonaDraft) (model.PersonaDraft, error)
}

// Embedder is used by the embedding dedup strategy
type Embedder interface {
	Embed(ctx context.Context, text, label string) []float32
}

// NewComparator returns the dedup strategy named by cfg.Dedup. The embedding
// strategy uses threshold and needs an embedder.
func NewComparator(cfg model.PersonaConfig, threshold float64, embedder Embedder) (cluster.Comparator, error) {
	switch cfg.Dedup {
	case model.PersonaDedupExact:
		return cluster.Exact{}, nil
	case model.PersonaDedupTokenOverlap, "":
		ratio := cfg.OverlapRatio
		if ratio <= 0 {
			ratio = 0.5
		}
		return cluster.TokenOverlap{Ratio: ratio}, nil
	case model.PersonaDedupEmbedding:
		if embedder == nil {
			return nil, fmt.Errorf("persona dedup %q needs an embedding provider", cfg.Dedup)
		}
		return cluster.NewEmbeddingThreshold(func(ctx context.Context, text string) []float32 {
			return embedder.Embed(ctx, text, "persona-dedup")
		}, threshold), nil
	default:
		return nil, fmt.Errorf("unknown persona dedup strategy %q", cfg.Dedup)
	}
}

// Generator runs persona generation for one project
type Generator struct {
	store     Store
	describer Describer
	cmp       cluster.Comparator
	cfg       model.PersonaConfig
	log       *logger.Logger
	newID     func() string
}

// NewGenerator builds a Generator. cmp decides which described personas are
// duplicates of each other.
func NewGenerator(store Store, describer Describer, cmp cluster.Comparator, cfg model.PersonaConfig, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewNop()
	}
	if cmp == nil {
		cmp = cluster.TokenOverlap{Ratio: 0.5}
	}
	return &Generator{
		store:     store,
		describer: describer,
		cmp:       cmp,
		cfg:       cfg,
		log:       log,
		newID:     uuid.NewString,
	}
}

type described struct {
	cluster model.PersonaCluster
	draft   model.PersonaDraft
}

// Run clusters, describes, deduplicates and stores personas for the scope's
// project. A project without facetted people yields an empty result.
func (g *Generator) Run(ctx context.Context, req model.PersonaRequest) (*model.PersonaResult, error) {
	if !req.Scope.HasProject() {
		return nil, ErrNoProject
	}
	log := g.log.With("account_id", req.Scope.AccountID, "project_id", req.Scope.ProjectID)
	result := &model.PersonaResult{PersonaIDs: []string{}, Personas: []model.Persona{}}

	clusters, err := g.Cluster(ctx, req.Scope.ProjectID)
	if err != nil {
		return nil, err
	}
	result.Clusters = len(clusters)
	if len(clusters) == 0 {
		log.Warn("no clusters found, people need facets first")
		return result, nil
	}
	log.Info("people clustered", "clusters", len(clusters))

	for i := range clusters {
		if err := g.Aggregate(ctx, req.Scope.ProjectID, &clusters[i]); err != nil {
			return nil, err
		}
	}

	drafts, err := g.describeAll(ctx, clusters)
	if err != nil {
		return nil, err
	}

	core, dropped := cluster.Dedupe(ctx, drafts, func(d described) string { return d.draft.Name }, g.cmp)
	for _, d := range dropped {
		log.Info("duplicate persona dropped", "persona", d.draft.Name)
	}

	for _, d := range core {
		p, err := g.persist(ctx, req.Scope, model.PersonaKindCore, d.draft)
		if err != nil {
			return nil, err
		}
		for _, personID := range d.cluster.PeopleIDs {
			if err := g.store.LinkPersonaPerson(ctx, p.ID, personID); err != nil {
				return nil, fmt.Errorf("link persona %s: %w", p.ID, err)
			}
			result.PeopleLinks++
		}
		result.PersonaIDs = append(result.PersonaIDs, p.ID)
		result.Personas = append(result.Personas, *p)
	}

	if g.cfg.Contrast && len(core) > 0 {
		existing := make([]model.PersonaDraft, len(core))
		for i, d := range core {
			existing[i] = d.draft
		}
		contrast, err := g.describer.DescribeContrast(ctx, existing)
		if err != nil {
			log.Error("contrast persona failed", "error", err)
		} else {
			contrast.Name += ContrastSuffix
			p, err := g.persist(ctx, req.Scope, model.PersonaKindContrast, contrast)
			if err != nil {
				return nil, err
			}
			result.PersonaIDs = append(result.PersonaIDs, p.ID)
			result.Personas = append(result.Personas, *p)
		}
	}

	log.Info("persona generation complete", "personas", len(result.PersonaIDs), "people_links", result.PeopleLinks)
	return result, nil
}

// Cluster groups the project's people by their exact facet set and drops
// clusters whose members duplicate a larger cluster's. Clusters are returned
// largest first.
func (g *Generator) Cluster(ctx context.Context, projectID string) ([]model.PersonaCluster, error) {
	facets, err := g.store.ListPersonFacets(ctx, projectID, g.cfg.FacetKinds)
	if err != nil {
		return nil, fmt.Errorf("load person facets: %w", err)
	}

	type member struct {
		id     string
		facets []model.PersonFacet
	}
	var people []member
	index := make(map[string]int)
	for _, f := range facets {
		i, ok := index[f.PersonID]
		if !ok {
			i = len(people)
			index[f.PersonID] = i
			people = append(people, member{id: f.PersonID})
		}
		people[i].facets = append(people[i].facets, f)
	}
	for i := range people {
		sort.Slice(people[i].facets, func(a, b int) bool {
			return people[i].facets[a].FacetID < people[i].facets[b].FacetID
		})
	}

	groups := cluster.GroupByKey(people, func(m member) string {
		ids := make([]string, len(m.facets))
		for i, f := range m.facets {
			ids[i] = strconv.FormatInt(f.FacetID, 10)
		}
		return strings.Join(ids, ",")
	})

	clusters := make([]model.PersonaCluster, 0, len(groups))
	for _, grp := range groups {
		c := model.PersonaCluster{Key: grp.Key, Scales: map[string]float64{}}
		for _, m := range grp.Items {
			c.PeopleIDs = append(c.PeopleIDs, m.id)
		}
		for _, f := range grp.Items[0].facets {
			c.SharedFacets = append(c.SharedFacets, model.PersonFacet{FacetID: f.FacetID, KindSlug: f.KindSlug, Label: f.Label})
		}
		clusters = append(clusters, c)
	}
	return distinctMembers(clusters), nil
}

// distinctMembers keeps the first cluster for each set of people, visiting
// clusters largest first.
func distinctMembers(clusters []model.PersonaCluster) []model.PersonaCluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size() > clusters[j].Size()
	})
	seen := make(map[string]bool)
	out := clusters[:0]
	for _, c := range clusters {
		ids := append([]string(nil), c.PeopleIDs...)
		sort.Strings(ids)
		sig := strings.Join(ids, ",")
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, c)
	}
	return out
}

// Aggregate fills the cluster's pains, goals, behaviors, quotes and average
// scales from its members' evidence.
func (g *Generator) Aggregate(ctx context.Context, projectID string, c *model.PersonaCluster) error {
	facets, err := g.store.ListEvidenceFacetsForPeople(ctx, projectID, c.PeopleIDs, evidenceKinds)
	if err != nil {
		return fmt.Errorf("load evidence facets for cluster %s: %w", c.Key, err)
	}
	pains, goals, behaviors := newTally(), newTally(), newTally()
	for _, f := range facets {
		switch f.KindSlug {
		case "pain":
			pains.add(f.Label)
		case "goal":
			goals.add(f.Label)
		case "behavior", "task":
			behaviors.add(f.Label)
		}
	}
	c.Pains = pains.top(maxTraits)
	c.Goals = goals.top(maxTraits)
	c.Behaviors = behaviors.top(maxTraits)

	quotes, err := g.store.ListEvidenceQuotes(ctx, projectID, c.PeopleIDs, quoteEvidenceRows)
	if err != nil {
		return fmt.Errorf("load quotes for cluster %s: %w", c.Key, err)
	}
	c.Quotes = []string{}
	for _, q := range quotes {
		if q = strings.TrimSpace(q); q != "" && len(c.Quotes) < maxQuotes {
			c.Quotes = append(c.Quotes, q)
		}
	}

	scales, err := g.store.ListPersonScales(ctx, c.PeopleIDs)
	if err != nil {
		return fmt.Errorf("load scales for cluster %s: %w", c.Key, err)
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range scales {
		sums[s.KindSlug] += s.Score
		counts[s.KindSlug]++
	}
	c.Scales = make(map[string]float64, len(sums))
	for kind, sum := range sums {
		c.Scales[kind] = sum / float64(counts[kind])
	}
	return nil
}

// describeAll describes clusters concurrently. A cluster whose description
// fails is logged and left out; the order of the rest is preserved.
func (g *Generator) describeAll(ctx context.Context, clusters []model.PersonaCluster) ([]described, error) {
	drafts := make([]*model.PersonaDraft, len(clusters))

	eg, egCtx := errgroup.WithContext(ctx)
	if g.cfg.Concurrency > 0 {
		eg.SetLimit(g.cfg.Concurrency)
	}
	for i := range clusters {
		eg.Go(func() error {
			start := time.Now()
			draft, err := g.describer.Describe(egCtx, clusters[i])
			if err != nil {
				g.log.Warn("persona description failed, dropping cluster",
					"cluster", clusters[i].Key, "people", clusters[i].Size(), "error", err)
				return nil
			}
			g.log.Debug("persona described", "cluster", clusters[i].Key, "persona", draft.Name,
				"duration", time.Since(start).String())
			drafts[i] = &draft
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]described, 0, len(clusters))
	for i, d := range drafts {
		if d != nil {
			out = append(out, described{cluster: clusters[i], draft: *d})
		}
	}
	return out, nil
}

func (g *Generator) persist(ctx context.Context, scope model.Scope, kind model.PersonaKind, draft model.PersonaDraft) (*model.Persona, error) {
	p := &model.Persona{
		ID:           g.newID(),
		AccountID:    scope.AccountID,
		ProjectID:    scope.ProjectID,
		Kind:         kind,
		PersonaDraft: draft,
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.store.InsertPersona(ctx, p); err != nil {
		return nil, fmt.Errorf("store persona %q: %w", draft.Name, err)
	}
	return p, nil
}

// tally counts labels and remembers first-seen order for ties
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if t.counts[label] == 0 {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

// top returns up to n labels, most frequent first.
func (t *tally) top(n int) []string {
	out := append([]string{}, t.order...)
	sort.SliceStable(out, func(i, j int) bool {
		return t.counts[out[i]] > t.counts[out[j]]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
