// Package cluster groups items by an exact key and drops near-duplicates
// using a pluggable name comparator.
package cluster

import (
	"context"
	"strings"

	"github.com/ppiankov/thematic/internal/store"
)

// Group is a set of items sharing one key
type Group[T any] struct {
	Key   string
	Items []T
}

// GroupByKey buckets items by key, keeping groups and their members in first
// seen order. Items with an empty key are grouped together under "".
func GroupByKey[T any](items []T, key func(T) string) []Group[T] {
	index := make(map[string]int)
	var groups []Group[T]
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

// Comparator decides whether a candidate text duplicates one already kept.
// It returns the index of the matching kept text.
type Comparator interface {
	Duplicate(ctx context.Context, candidate string, kept []string) (int, bool)
}

// Dedupe keeps items in order, dropping each one the comparator reports as a
// duplicate of an earlier kept item. Items whose text is blank are dropped.
func Dedupe[T any](ctx context.Context, items []T, text func(T) string, cmp Comparator) (kept, dropped []T) {
	names := make([]string, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(text(item))
		if name == "" {
			dropped = append(dropped, item)
			continue
		}
		if _, dup := cmp.Duplicate(ctx, name, names); dup {
			dropped = append(dropped, item)
			continue
		}
		names = append(names, name)
		kept = append(kept, item)
	}
	return kept, dropped
}

// Exact treats texts equal after case folding and trimming as duplicates.
type Exact struct{}

func (Exact) Duplicate(_ context.Context, candidate string, kept []string) (int, bool) {
	c := fold(candidate)
	for i, k := range kept {
		if fold(k) == c {
			return i, true
		}
	}
	return -1, false
}

// TokenOverlap treats a candidate as a duplicate when at least Ratio of its
// whitespace-separated words appear in a kept text, with at least one shared.
type TokenOverlap struct {
	Ratio float64
}

func (t TokenOverlap) Duplicate(ctx context.Context, candidate string, kept []string) (int, bool) {
	if i, ok := (Exact{}).Duplicate(ctx, candidate, kept); ok {
		return i, true
	}
	words := strings.Fields(fold(candidate))
	if len(words) == 0 {
		return -1, false
	}
	for i, k := range kept {
		existing := make(map[string]bool)
		for _, w := range strings.Fields(fold(k)) {
			existing[w] = true
		}
		overlap := 0
		for _, w := range words {
			if existing[w] {
				overlap++
			}
		}
		if overlap >= 1 && float64(overlap)/float64(len(words)) >= t.Ratio {
			return i, true
		}
	}
	return -1, false
}

// EmbedFunc returns a vector for text, or nil when none is available.
type EmbedFunc func(ctx context.Context, text string) []float32

// EmbeddingThreshold treats a candidate as a duplicate when its embedding is
// at least Threshold cosine-similar to a kept text. When a vector is missing
// the comparison falls back to Exact.
type EmbeddingThreshold struct {
	Embed     EmbedFunc
	Threshold float64

	vectors map[string][]float32
}

// NewEmbeddingThreshold returns a comparator that embeds each distinct text once.
func NewEmbeddingThreshold(embed EmbedFunc, threshold float64) *EmbeddingThreshold {
	return &EmbeddingThreshold{Embed: embed, Threshold: threshold, vectors: make(map[string][]float32)}
}

func (e *EmbeddingThreshold) Duplicate(ctx context.Context, candidate string, kept []string) (int, bool) {
	if i, ok := (Exact{}).Duplicate(ctx, candidate, kept); ok {
		return i, true
	}
	cv := e.vector(ctx, candidate)
	if cv == nil {
		return -1, false
	}
	best, bestSim := -1, e.Threshold
	for i, k := range kept {
		kv := e.vector(ctx, k)
		if kv == nil {
			continue
		}
		if sim := store.CosineSimilarity(cv, kv); sim >= bestSim {
			best, bestSim = i, sim
		}
	}
	return best, best >= 0
}

func (e *EmbeddingThreshold) vector(ctx context.Context, text string) []float32 {
	if e.vectors == nil {
		e.vectors = make(map[string][]float32)
	}
	if v, ok := e.vectors[text]; ok {
		return v
	}
	v := e.Embed(ctx, text)
	e.vectors[text] = v
	return v
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
