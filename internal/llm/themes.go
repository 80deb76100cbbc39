package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/thematic/internal/model"
)

const themeSystemPrompt = `You are a qualitative research analyst. You group customer research evidence into a small set of distinct, non-overlapping themes. You respond with JSON only.`

// ThemeGenerator proposes theme candidates from enriched evidence
type ThemeGenerator struct {
	provider Provider
}

// NewThemeGenerator wraps a generative provider
func NewThemeGenerator(provider Provider) *ThemeGenerator {
	return &ThemeGenerator{provider: provider}
}

type themeResponse struct {
	Themes []model.ThemeCandidate `json:"themes"`
}

// ProposeThemes asks the model for themes over evidenceJSON. Candidates with
// blank names are dropped; any provider or parse failure is returned.
func (g *ThemeGenerator) ProposeThemes(ctx context.Context, evidenceJSON, guidance string) ([]model.ThemeCandidate, error) {
	resp, err := g.provider.Complete(ctx, CompletionRequest{
		System: themeSystemPrompt,
		Prompt: BuildThemePrompt(evidenceJSON, guidance),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("propose themes: %w", err)
	}

	parsed, err := parseJSON[themeResponse](resp.Text)
	if err != nil {
		return nil, fmt.Errorf("propose themes: %w", err)
	}

	out := make([]model.ThemeCandidate, 0, len(parsed.Themes))
	for _, c := range parsed.Themes {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		c.Statement = strings.TrimSpace(c.Statement)
		c.InclusionCriteria = strings.TrimSpace(c.InclusionCriteria)
		c.ExclusionCriteria = strings.TrimSpace(c.ExclusionCriteria)
		c.Synonyms = cleanList(c.Synonyms)
		c.AntiExamples = cleanList(c.AntiExamples)
		out = append(out, c)
	}
	return out, nil
}

// BuildThemePrompt embeds the evidence JSON and guidance verbatim.
func BuildThemePrompt(evidenceJSON, guidance string) string {
	var b strings.Builder
	b.WriteString(`Group the evidence below into themes. A theme is a recurring pattern that several evidence items support.

Rules:
1. Prefer 3-10 themes. Merge near-duplicates into one theme.
2. Names are short noun phrases (2-6 words) in Title Case.
3. The statement is one sentence describing the pattern.
4. inclusion_criteria says what evidence belongs; exclusion_criteria says what does not.
5. synonyms lists alternative names; anti_examples lists things easily confused with the theme.

Respond with a JSON object of this shape:
{"themes":[{"name":"","statement":"","inclusion_criteria":"","exclusion_criteria":"","synonyms":[],"anti_examples":[]}]}
`)
	if strings.TrimSpace(guidance) != "" {
		b.WriteString("\nGuidance from the researcher:\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	b.WriteString("\nEvidence:\n")
	b.WriteString(evidenceJSON)
	b.WriteString("\n")
	return b.String()
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
