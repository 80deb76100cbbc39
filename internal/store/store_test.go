package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/thematic/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "thematic-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func boolPtr(b bool) *bool { return &b }

var scope = model.Scope{AccountID: "acct", ProjectID: "proj"}

func addEvidence(t *testing.T, db *DB, id, verbatim string, age time.Duration, isQuestion *bool, vec []float32) {
	t.Helper()
	err := db.InsertEvidence(context.Background(), &model.Evidence{
		ID:         id,
		AccountID:  scope.AccountID,
		ProjectID:  scope.ProjectID,
		Verbatim:   verbatim,
		IsQuestion: isQuestion,
		Embedding:  vec,
		CreatedAt:  time.Now().UTC().Add(-age),
	})
	require.NoError(t, err)
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"evidence", "evidence_facet", "themes", "theme_evidence",
		"people", "person_facet", "person_scale", "personas", "persona_people"} {
		var n int
		require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&n), table)
	}
}

func TestListEvidence_ExcludesQuestionsAndOrdersNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addEvidence(t, db, "old", "old quote", 3*time.Hour, nil, nil)
	addEvidence(t, db, "new", "new quote", time.Hour, boolPtr(false), nil)
	addEvidence(t, db, "q", "is this a question?", 0, boolPtr(true), nil)

	got, err := db.ListEvidence(ctx, model.EvidenceQuery{ProjectID: "proj", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
	require.NotNil(t, got[0].IsQuestion)
	assert.False(t, *got[0].IsQuestion)
	assert.Nil(t, got[1].IsQuestion)

	limited, err := db.ListEvidence(ctx, model.EvidenceQuery{ProjectID: "proj", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ID)
}

func TestListEvidence_ExplicitIDs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addEvidence(t, db, "e1", "one", 0, nil, nil)
	addEvidence(t, db, "e2", "two", 0, nil, nil)
	addEvidence(t, db, "e3", "three", 0, boolPtr(true), nil)

	got, err := db.ListEvidence(ctx, model.EvidenceQuery{ProjectID: "proj", IDs: []string{"e2", "e3", "missing"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e2", got[0].ID)
}

func TestEvidenceFacets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addEvidence(t, db, "e1", "one", 0, nil, nil)
	require.NoError(t, db.InsertEvidenceFacet(ctx, model.EvidenceFacet{EvidenceID: "e1", ProjectID: "proj", KindSlug: "pain", Label: "slow"}))
	require.NoError(t, db.InsertEvidenceFacet(ctx, model.EvidenceFacet{EvidenceID: "e1", ProjectID: "proj", Label: "onboarding"}))

	facets, err := db.ListEvidenceFacets(ctx, []string{"e1"})
	require.NoError(t, err)
	require.Len(t, facets, 2)
	assert.Equal(t, "pain:slow", facets[0].Tag())
	assert.Equal(t, "onboarding", facets[1].Tag())

	none, err := db.ListEvidenceFacets(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEvidenceEmbeddingBackfill(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addEvidence(t, db, "e1", "one", 0, nil, nil)
	addEvidence(t, db, "e2", "two", 0, nil, []float32{1, 0})

	missing, err := db.ListEvidenceMissingEmbeddings(ctx, "proj", 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "e1", missing[0].ID)

	require.NoError(t, db.SetEvidenceEmbedding(ctx, "e1", []float32{0, 1}, "test-model"))
	missing, err = db.ListEvidenceMissingEmbeddings(ctx, "proj", 0)
	require.NoError(t, err)
	assert.Empty(t, missing)

	err = db.SetEvidenceEmbedding(ctx, "nope", []float32{1}, "m")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchEvidence_ThresholdAndTopK(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addEvidence(t, db, "same", "a", 0, nil, []float32{1, 0})
	addEvidence(t, db, "close", "b", 0, nil, []float32{0.9, 0.1})
	addEvidence(t, db, "far", "c", 0, nil, []float32{0, 1})
	addEvidence(t, db, "question", "d?", 0, boolPtr(true), []float32{1, 0})

	matches, err := db.SearchEvidence(ctx, []float32{1, 0}, scope, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "same", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, "close", matches[1].ID)

	top1, err := db.SearchEvidence(ctx, []float32{1, 0}, scope, 0.5, 1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, "same", top1[0].ID)
}

func TestThemeCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	th := &model.Theme{
		ID:        "t1",
		AccountID: "acct",
		ProjectID: "proj",
		Name:      "Onboarding friction",
		Statement: "Users struggle to get started",
		Embedding: []float32{1, 0},
	}
	require.NoError(t, db.InsertTheme(ctx, th))

	got, err := db.GetTheme(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Onboarding friction", got.Name)
	assert.Equal(t, []string{}, got.Synonyms)
	assert.Equal(t, []string{}, got.AntiExamples)
	assert.Equal(t, []float32{1, 0}, got.Embedding)

	found, err := db.FindThemeByName(ctx, scope, "Onboarding friction")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "t1", found.ID)

	miss, err := db.FindThemeByName(ctx, scope, "onboarding friction")
	require.NoError(t, err)
	assert.Nil(t, miss, "name match is exact")

	got.Synonyms = []string{"Setup pain"}
	got.InclusionCriteria = "mentions first run"
	require.NoError(t, db.UpdateTheme(ctx, got))

	again, err := db.GetTheme(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Setup pain"}, again.Synonyms)
	assert.Equal(t, "mentions first run", again.InclusionCriteria)
	assert.Equal(t, th.CreatedAt.Unix(), again.CreatedAt.Unix())

	_, err = db.GetTheme(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindThemeByName_AccountWideScope(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertTheme(ctx, &model.Theme{ID: "wide", AccountID: "acct", Name: "Pricing"}))
	require.NoError(t, db.InsertTheme(ctx, &model.Theme{ID: "proj", AccountID: "acct", ProjectID: "proj", Name: "Pricing"}))

	wide, err := db.FindThemeByName(ctx, model.Scope{AccountID: "acct"}, "Pricing")
	require.NoError(t, err)
	require.NotNil(t, wide)
	assert.Equal(t, "wide", wide.ID)

	proj, err := db.FindThemeByName(ctx, scope, "Pricing")
	require.NoError(t, err)
	require.NotNil(t, proj)
	assert.Equal(t, "proj", proj.ID)

	other, err := db.FindThemeByName(ctx, model.Scope{AccountID: "other", ProjectID: "proj"}, "Pricing")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSearchThemes_ScopedToProject(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertTheme(ctx, &model.Theme{ID: "a", AccountID: "acct", ProjectID: "proj", Name: "A", Embedding: []float32{1, 0}}))
	require.NoError(t, db.InsertTheme(ctx, &model.Theme{ID: "b", AccountID: "acct", ProjectID: "other", Name: "B", Embedding: []float32{1, 0}}))
	require.NoError(t, db.InsertTheme(ctx, &model.Theme{ID: "c", AccountID: "acct", ProjectID: "proj", Name: "C"}))

	matches, err := db.SearchThemes(ctx, []float32{1, 0}, scope, 0.8, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
}

func TestUpsertThemeEvidence_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertTheme(ctx, &model.Theme{ID: "t1", AccountID: "acct", ProjectID: "proj", Name: "T"}))

	first := &model.ThemeEvidence{AccountID: "acct", ProjectID: "proj", ThemeID: "t1", EvidenceID: "e1", Rationale: "Semantic match (70%)", Confidence: 0.7}
	require.NoError(t, db.UpsertThemeEvidence(ctx, first))

	second := &model.ThemeEvidence{AccountID: "acct", ProjectID: "proj", ThemeID: "t1", EvidenceID: "e1", Rationale: "Semantic match (90%)", Confidence: 0.9}
	require.NoError(t, db.UpsertThemeEvidence(ctx, second))
	assert.Equal(t, first.ID, second.ID, "conflict keeps the original row")

	n, err := db.CountThemeEvidence(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	links, err := db.ListThemeEvidence(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Semantic match (90%)", links[0].Rationale)
	assert.InDelta(t, 0.9, links[0].Confidence, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestPersonaQueries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertPerson(ctx, model.Person{ID: "p1", AccountID: "acct", ProjectID: "proj", Name: "Ana"}))
	require.NoError(t, db.InsertPersonFacet(ctx, "proj", model.PersonFacet{PersonID: "p1", FacetID: 1, KindSlug: "job_function", Label: "Engineer"}))
	require.NoError(t, db.InsertPersonFacet(ctx, "proj", model.PersonFacet{PersonID: "p1", FacetID: 9, KindSlug: "hobby", Label: "Chess"}))
	require.NoError(t, db.InsertPersonScale(ctx, model.PersonScale{PersonID: "p1", KindSlug: "tech_savvy", Score: 0.8}))

	facets, err := db.ListPersonFacets(ctx, "proj", []string{"job_function"})
	require.NoError(t, err)
	require.Len(t, facets, 1)
	assert.Equal(t, "Engineer", facets[0].Label)

	addEvidence(t, db, "e1", "I lose hours on setup", 0, nil, nil)
	require.NoError(t, db.InsertEvidenceFacet(ctx, model.EvidenceFacet{EvidenceID: "e1", ProjectID: "proj", PersonID: "p1", KindSlug: "pain", Label: "setup time"}))

	ef, err := db.ListEvidenceFacetsForPeople(ctx, "proj", []string{"p1"}, []string{"pain", "goal"})
	require.NoError(t, err)
	require.Len(t, ef, 1)
	assert.Equal(t, "setup time", ef[0].Label)

	quotes, err := db.ListEvidenceQuotes(ctx, "proj", []string{"p1"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"I lose hours on setup"}, quotes)

	scales, err := db.ListPersonScales(ctx, []string{"p1"})
	require.NoError(t, err)
	require.Len(t, scales, 1)
	assert.InDelta(t, 0.8, scales[0].Score, 1e-9)

	p := &model.Persona{ID: "persona-1", AccountID: "acct", ProjectID: "proj",
		PersonaDraft: model.PersonaDraft{Name: "Busy Engineer", Goals: []string{"ship"}}}
	require.NoError(t, db.InsertPersona(ctx, p))
	require.NoError(t, db.LinkPersonaPerson(ctx, "persona-1", "p1"))
	require.NoError(t, db.LinkPersonaPerson(ctx, "persona-1", "p1"))

	personas, err := db.ListPersonas(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, model.PersonaKindCore, personas[0].Kind)
	assert.Equal(t, "Busy Engineer", personas[0].Name)
	assert.Equal(t, []string{"ship"}, personas[0].Goals)

	people, err := db.ListPersonaPeople(ctx, "persona-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, people)
}

func TestImport_IsRepeatable(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ds := &model.Dataset{
		Evidence: []model.DatasetEvidence{
			{ID: "e1", Verbatim: "setup took a day", Facets: []model.DatasetFacet{{PersonID: "p1", KindSlug: "pain", Label: "setup"}}},
			{ID: "e2", Verbatim: "what would you change?", IsQuestion: boolPtr(true)},
			{Verbatim: "no id given"},
		},
		People: []model.DatasetPerson{
			{ID: "p1", Name: "Ana", Facets: []model.PersonFacet{{FacetID: 1, KindSlug: "persona", Label: "Builder"}},
				Scales: []model.PersonScale{{KindSlug: "urgency", Score: 0.5}}},
		},
	}

	stats, err := db.Import(ctx, scope, ds)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStats{Evidence: 3, Facets: 1, People: 1}, stats)

	stats, err = db.Import(ctx, scope, &model.Dataset{Evidence: ds.Evidence[:2], People: ds.People})
	require.NoError(t, err)
	assert.Equal(t, model.ImportStats{}, stats)

	evidence, err := db.ListEvidence(ctx, model.EvidenceQuery{ProjectID: "proj"})
	require.NoError(t, err)
	assert.Len(t, evidence, 2, "questions are excluded")

	facets, err := db.ListPersonFacets(ctx, "proj", nil)
	require.NoError(t, err)
	assert.Len(t, facets, 1)

	_, err = db.Import(ctx, model.Scope{AccountID: "acct"}, ds)
	assert.Error(t, err)
}

func TestInsertEvidence_DuplicateID(t *testing.T) {
	db := testDB(t)
	addEvidence(t, db, "e1", "first", 0, nil, nil)

	err := db.InsertEvidence(context.Background(), &model.Evidence{ID: "e1", AccountID: "acct", ProjectID: "proj", Verbatim: "second"})
	assert.ErrorContains(t, err, "already exists")

	got, err := db.ListEvidence(context.Background(), model.EvidenceQuery{ProjectID: "proj"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Verbatim)
}

func TestImport_PersonFacetsMatchInsertPersonFacet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ds := &model.Dataset{People: []model.DatasetPerson{{
		ID: "p1", Name: "Ana",
		Facets: []model.PersonFacet{
			{FacetID: 1, KindSlug: "persona", Label: "Builder"},
			{FacetID: 1, KindSlug: "persona", Label: "Operator"},
		},
	}}}

	_, err := db.Import(ctx, scope, ds)
	require.NoError(t, err)
	facets, err := db.ListPersonFacets(ctx, "proj", nil)
	require.NoError(t, err)
	require.Len(t, facets, 1)
	assert.Equal(t, "Operator", facets[0].Label, "a repeated facet id takes the later label")

	require.NoError(t, db.InsertPersonFacet(ctx, "proj", model.PersonFacet{PersonID: "p1", FacetID: 1, KindSlug: "persona", Label: "Explorer"}))
	facets, err = db.ListPersonFacets(ctx, "proj", nil)
	require.NoError(t, err)
	require.Len(t, facets, 1)
	assert.Equal(t, "Explorer", facets[0].Label)
}
