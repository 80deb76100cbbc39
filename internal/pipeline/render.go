package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/thematic/internal/backfill"
	"github.com/ppiankov/thematic/internal/model"
)

// Renderer writes run results as JSON files and human summaries
type Renderer struct {
	out io.Writer
}

func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// RenderJSON writes v as indented JSON to path, creating parent directories.
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(r.out, "✓ Wrote JSON: %s\n", path)
	return nil
}

// SynthesisSummary prints the themes a run touched.
func (r *Renderer) SynthesisSummary(res *model.SynthesisResult) {
	fmt.Fprintf(r.out, "\nThemes: %d  Links: %d  Candidates: %d", len(res.CreatedThemeIDs), res.LinkCount, res.Candidates)
	if res.Skipped > 0 {
		fmt.Fprintf(r.out, "  Skipped: %d", res.Skipped)
	}
	fmt.Fprintln(r.out)
	for _, t := range res.Themes {
		fmt.Fprintf(r.out, "  • %s\n", t.Name)
		if t.Statement != "" {
			fmt.Fprintf(r.out, "      %s\n", t.Statement)
		}
		if len(t.Synonyms) > 0 {
			fmt.Fprintf(r.out, "      also: %s\n", strings.Join(t.Synonyms, "; "))
		}
	}
}

// PersonaSummary prints the personas a run stored.
func (r *Renderer) PersonaSummary(res *model.PersonaResult) {
	fmt.Fprintf(r.out, "\nClusters: %d  Personas: %d  People links: %d\n", res.Clusters, len(res.Personas), res.PeopleLinks)
	for _, p := range res.Personas {
		fmt.Fprintf(r.out, "  • [%s] %s\n", p.Kind, p.Name)
		if p.Description != "" {
			fmt.Fprintf(r.out, "      %s\n", p.Description)
		}
	}
}

// ThemeList prints stored themes with their link counts.
func (r *Renderer) ThemeList(themes []model.ThemeSummary) {
	fmt.Fprintf(r.out, "Themes: %d\n", len(themes))
	for _, t := range themes {
		fmt.Fprintf(r.out, "  • %s (%d links)\n", t.Name, t.LinkCount)
		if len(t.Synonyms) > 0 {
			fmt.Fprintf(r.out, "      also: %s\n", strings.Join(t.Synonyms, "; "))
		}
	}
}

func (r *Renderer) ImportSummary(stats model.ImportStats) {
	fmt.Fprintf(r.out, "Imported %d evidence, %d facets, %d people\n", stats.Evidence, stats.Facets, stats.People)
}

func (r *Renderer) BackfillSummary(stats backfill.Stats) {
	fmt.Fprintf(r.out, "Embedded %d of %d evidence (%d failed)\n", stats.Embedded, stats.Pending, stats.Failed)
}
