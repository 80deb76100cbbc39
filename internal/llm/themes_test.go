package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/thematic/internal/model"
)

// stubProvider returns a canned completion and records the last request
type stubProvider struct {
	text string
	err  error
	last CompletionRequest
}

func (s *stubProvider) Name() string                     { return "stub" }
func (s *stubProvider) IsAvailable(context.Context) bool { return true }
func (s *stubProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &CompletionResponse{Text: s.text}, nil
}

func TestThemeGenerator_ProposeThemes(t *testing.T) {
	stub := &stubProvider{text: "Here you go:\n```json\n" + `{"themes":[
		{"name":"  Onboarding Friction ","statement":"Setup is slow","synonyms":["Setup pain"," "]},
		{"name":"   ","statement":"nameless"},
		{"name":"Pricing Confusion","anti_examples":["discount requests"]}
	]}` + "\n```"}

	gen := NewThemeGenerator(stub)
	got, err := gen.ProposeThemes(context.Background(), `[{"id":"e1"}]`, "Use product area names")
	if err != nil {
		t.Fatalf("ProposeThemes failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Onboarding Friction" {
		t.Errorf("Expected trimmed name, got %q", got[0].Name)
	}
	if len(got[0].Synonyms) != 1 {
		t.Errorf("Expected blank synonyms dropped, got %v", got[0].Synonyms)
	}
	if got[1].AntiExamples[0] != "discount requests" {
		t.Errorf("Unexpected anti examples: %v", got[1].AntiExamples)
	}

	if !stub.last.JSON {
		t.Error("Expected JSON mode request")
	}
	if !strings.Contains(stub.last.Prompt, `[{"id":"e1"}]`) || !strings.Contains(stub.last.Prompt, "Use product area names") {
		t.Error("Expected prompt to embed evidence and guidance verbatim")
	}
}

func TestThemeGenerator_ProviderError(t *testing.T) {
	gen := NewThemeGenerator(&stubProvider{err: errors.New("rate limited")})
	if _, err := gen.ProposeThemes(context.Background(), "[]", ""); err == nil {
		t.Error("Expected provider error to propagate")
	}
}

func TestThemeGenerator_Unparseable(t *testing.T) {
	gen := NewThemeGenerator(&stubProvider{text: "I could not find any themes."})
	if _, err := gen.ProposeThemes(context.Background(), "[]", ""); err == nil {
		t.Error("Expected parse error")
	}
}

func TestBuildThemePrompt_NoGuidance(t *testing.T) {
	prompt := BuildThemePrompt("[]", "  ")
	if strings.Contains(prompt, "Guidance from the researcher") {
		t.Error("Expected no guidance section for blank guidance")
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bare", `{"name":"A"}`, false},
		{"fenced", "```json\n{\"name\":\"A\"}\n```", false},
		{"prose", `Sure! {"name":"A"} Hope this helps.`, false},
		{"empty", "   ", true},
		{"garbage", "no json here", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON[model.PersonaDraft](tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Name != "A" {
				t.Errorf("Expected name A, got %q", got.Name)
			}
		})
	}
}

func TestPersonaDescriber_Describe(t *testing.T) {
	stub := &stubProvider{text: `{"name":" Pragmatic Builder ","goals":["ship fast"]}`}
	d := NewPersonaDescriber(stub)

	cluster := model.PersonaCluster{Key: "1,2", PeopleIDs: []string{"p1", "p2"}, Pains: []string{"slow setup"}}
	draft, err := d.Describe(context.Background(), cluster)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if draft.Name != "Pragmatic Builder" {
		t.Errorf("Unexpected name %q", draft.Name)
	}
	if !strings.Contains(stub.last.Prompt, "slow setup") || !strings.Contains(stub.last.Prompt, "2 research participants") {
		t.Error("Expected prompt to include cluster data")
	}
}

func TestPersonaDescriber_RejectsNameless(t *testing.T) {
	d := NewPersonaDescriber(&stubProvider{text: `{"description":"no name"}`})
	if _, err := d.Describe(context.Background(), model.PersonaCluster{}); err == nil {
		t.Error("Expected error for nameless persona")
	}
}

func TestPersonaDescriber_DescribeContrast(t *testing.T) {
	stub := &stubProvider{text: `{"name":"Enterprise Buyer","differentiators":["needs procurement"]}`}
	d := NewPersonaDescriber(stub)

	draft, err := d.DescribeContrast(context.Background(), []model.PersonaDraft{{Name: "Solo Dev"}, {Name: "Hobbyist"}})
	if err != nil {
		t.Fatalf("DescribeContrast failed: %v", err)
	}
	if draft.Name != "Enterprise Buyer" {
		t.Errorf("Unexpected name %q", draft.Name)
	}
	if !strings.Contains(stub.last.Prompt, "Solo Dev, Hobbyist") {
		t.Error("Expected existing persona names in prompt")
	}
}
