package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/thematic/internal/model"
)

const personaSystemPrompt = `You write user personas grounded strictly in research data. Never invent facts that the data does not support. You respond with JSON only.`

const personaShape = `{"name":"","description":"","role":"","goals":[],"pains":[],"motivations":[],"values":[],"behaviors":[],"tools_used":[],"quotes":[],"differentiators":[]}`

// PersonaDescriber turns clusters of people into persona drafts
type PersonaDescriber struct {
	provider Provider
}

// NewPersonaDescriber wraps a generative provider
func NewPersonaDescriber(provider Provider) *PersonaDescriber {
	return &PersonaDescriber{provider: provider}
}

// Describe writes one persona for a cluster.
func (d *PersonaDescriber) Describe(ctx context.Context, cluster model.PersonaCluster) (model.PersonaDraft, error) {
	data, err := json.MarshalIndent(cluster, "", "  ")
	if err != nil {
		return model.PersonaDraft{}, fmt.Errorf("encode cluster: %w", err)
	}
	prompt := fmt.Sprintf(`Write one persona for this segment of %d research participants. Use the shared facets for role and context, the pains, goals and behaviors as given, and only the listed quotes.

Respond with a JSON object of this shape:
%s

Segment:
%s
`, cluster.Size(), personaShape, data)

	return d.complete(ctx, prompt)
}

// DescribeContrast writes a persona the product should not target, chosen to
// differ from every persona in existing.
func (d *PersonaDescriber) DescribeContrast(ctx context.Context, existing []model.PersonaDraft) (model.PersonaDraft, error) {
	names := make([]string, 0, len(existing))
	for _, p := range existing {
		names = append(names, p.Name)
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return model.PersonaDraft{}, fmt.Errorf("encode personas: %w", err)
	}
	prompt := fmt.Sprintf(`These personas were derived from research: %s.
Write one contrast persona: a plausible user whose goals and behaviors conflict with theirs, so the team knows who not to design for. Explain the differences in differentiators.

Respond with a JSON object of this shape:
%s

Existing personas:
%s
`, strings.Join(names, ", "), personaShape, data)

	return d.complete(ctx, prompt)
}

func (d *PersonaDescriber) complete(ctx context.Context, prompt string) (model.PersonaDraft, error) {
	resp, err := d.provider.Complete(ctx, CompletionRequest{
		System: personaSystemPrompt,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return model.PersonaDraft{}, fmt.Errorf("describe persona: %w", err)
	}
	draft, err := parseJSON[model.PersonaDraft](resp.Text)
	if err != nil {
		return model.PersonaDraft{}, fmt.Errorf("describe persona: %w", err)
	}
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		return model.PersonaDraft{}, fmt.Errorf("describe persona: model returned a persona without a name")
	}
	return draft, nil
}
