package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupByKey(t *testing.T) {
	type person struct{ id, key string }
	people := []person{{"p1", "1,2"}, {"p2", "3"}, {"p3", "1,2"}, {"p4", ""}}

	groups := GroupByKey(people, func(p person) string { return p.key })

	assert.Len(t, groups, 3)
	assert.Equal(t, "1,2", groups[0].Key)
	assert.Equal(t, []person{{"p1", "1,2"}, {"p3", "1,2"}}, groups[0].Items)
	assert.Equal(t, "3", groups[1].Key)
	assert.Equal(t, "", groups[2].Key)
	assert.Empty(t, GroupByKey([]person{}, func(p person) string { return p.key }))
}

func TestExact(t *testing.T) {
	i, ok := Exact{}.Duplicate(context.Background(), " power user ", []string{"Casual User", "Power User"})
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = Exact{}.Duplicate(context.Background(), "Power Users", []string{"Power User"})
	assert.False(t, ok)
}

func TestTokenOverlap(t *testing.T) {
	cmp := TokenOverlap{Ratio: 0.5}
	kept := []string{"Busy Operations Manager", "Solo Founder"}

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"half the words shared", "Operations Lead", true},
		{"majority shared", "Busy Operations Director", true},
		{"one of three shared", "Growth Marketing Manager", false},
		{"nothing shared", "Enterprise Buyer", false},
		{"case insensitive", "SOLO founder", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := cmp.Duplicate(context.Background(), tt.candidate, kept)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbeddingThreshold(t *testing.T) {
	vectors := map[string][]float32{
		"Power User":      {1, 0},
		"Heavy User":      {0.9, 0.4359},
		"Occasional User": {0, 1},
	}
	calls := 0
	cmp := NewEmbeddingThreshold(func(_ context.Context, text string) []float32 {
		calls++
		return vectors[text]
	}, 0.8)
	ctx := context.Background()
	kept := []string{"Occasional User", "Power User"}

	i, ok := cmp.Duplicate(ctx, "Heavy User", kept)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = cmp.Duplicate(ctx, "Unknown Person", kept)
	assert.False(t, ok, "missing vectors never match")

	_, ok = cmp.Duplicate(ctx, "power user", kept)
	assert.True(t, ok, "exact names match without embeddings")

	before := calls
	_, _ = cmp.Duplicate(ctx, "Heavy User", kept)
	assert.Equal(t, before, calls, "vectors are embedded once per text")
}

func TestDedupe(t *testing.T) {
	items := []string{"Power User", "", "Power Group", "power user", "Casual Visitor"}

	kept, dropped := Dedupe(context.Background(), items, func(s string) string { return s }, TokenOverlap{Ratio: 0.5})

	assert.Equal(t, []string{"Power User", "Casual Visitor"}, kept)
	assert.Equal(t, []string{"", "Power Group", "power user"}, dropped)
}

func TestDedupe_StrategyChangesOutcome(t *testing.T) {
	items := []string{"Power User", "Power Users Group"}
	text := func(s string) string { return s }

	kept, _ := Dedupe(context.Background(), items, text, Exact{})
	assert.Len(t, kept, 2)

	kept, _ = Dedupe(context.Background(), items, text, TokenOverlap{Ratio: 0.3})
	assert.Len(t, kept, 1)
}
