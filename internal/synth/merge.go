package synth

import (
	"strings"

	"github.com/ppiankov/thematic/internal/model"
)

// MergeExact folds a candidate into the theme that has its exact name.
// Scalars take the candidate's value when it supplies one and keep the
// existing value otherwise. Synonyms and anti-examples are unioned, keeping
// existing entries first. The input theme is not modified.
func MergeExact(existing model.Theme, c model.ThemeCandidate) model.Theme {
	merged := existing
	merged.Statement = preferIncoming(existing.Statement, c.Statement)
	merged.InclusionCriteria = preferIncoming(existing.InclusionCriteria, c.InclusionCriteria)
	merged.ExclusionCriteria = preferIncoming(existing.ExclusionCriteria, c.ExclusionCriteria)
	merged.Synonyms = union(existing.Synonyms, c.Synonyms, existing.Name)
	merged.AntiExamples = union(existing.AntiExamples, c.AntiExamples, "")
	return merged
}

// MergeSemantic folds a candidate into a theme it was found similar to.
// Text fields are only filled when empty, and the candidate's name is
// recorded as a synonym unless it is already known.
func MergeSemantic(existing model.Theme, c model.ThemeCandidate) model.Theme {
	merged := existing
	merged.Statement = fillIfEmpty(existing.Statement, c.Statement)
	merged.InclusionCriteria = fillIfEmpty(existing.InclusionCriteria, c.InclusionCriteria)
	merged.ExclusionCriteria = fillIfEmpty(existing.ExclusionCriteria, c.ExclusionCriteria)
	merged.Synonyms = union(existing.Synonyms, []string{c.Name}, existing.Name)
	if merged.AntiExamples == nil {
		merged.AntiExamples = []string{}
	}
	return merged
}

// Changed reports whether merging altered any stored field.
func Changed(before, after model.Theme) bool {
	return before.Statement != after.Statement ||
		before.InclusionCriteria != after.InclusionCriteria ||
		before.ExclusionCriteria != after.ExclusionCriteria ||
		!equalStrings(before.Synonyms, after.Synonyms) ||
		!equalStrings(before.AntiExamples, after.AntiExamples)
}

func preferIncoming(existing, incoming string) string {
	if strings.TrimSpace(incoming) != "" {
		return incoming
	}
	return existing
}

func fillIfEmpty(existing, incoming string) string {
	if strings.TrimSpace(existing) == "" && strings.TrimSpace(incoming) != "" {
		return incoming
	}
	return existing
}

// union appends the entries of add that are not already present (compared
// case-insensitively) and are not the theme's own name.
func union(base, add []string, ownName string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]bool, len(base)+len(add))
	if ownName != "" {
		seen[normalize(ownName)] = true
	}
	for _, s := range base {
		key := normalize(s)
		if key == "" {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	for _, s := range add {
		key := normalize(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
