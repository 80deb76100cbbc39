package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/pipeline"
)

var (
	accountID   string
	projectID   string
	outJSON     string
	timeout     time.Duration
	evidenceIDs []string
	guidance    string
	limit       int
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Synthesize research themes from evidence",
}

// synthesizeCmd represents the themes synthesize command
var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Generate themes for a project and link them to evidence",
	Long: `Synthesize loads evidence for a project, asks the language model for
candidate themes, and stores each candidate by:
- merging into an existing theme with the same name
- merging into a semantically similar theme (synonym recorded)
- creating a new theme otherwise
Each stored theme is then linked to its closest evidence.

Example:
  thematic themes synthesize --account acme --project onboarding
  thematic themes synthesize --account acme --project onboarding --guidance "focus on setup"
  thematic themes synthesize --account acme --project onboarding --evidence e1,e2,e3 --json themes.json`,
	Args: cobra.NoArgs,
	RunE: runSynthesize,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored themes of a project with their evidence link counts",
	Long: `List prints the themes stored for a project, oldest first.

Example:
  thematic themes list --account acme --project onboarding
  thematic themes list --account acme --project onboarding --json themes.json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(themesCmd)
	themesCmd.AddCommand(synthesizeCmd)
	themesCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&accountID, "account", "", "account ID (required)")
	listCmd.Flags().StringVar(&projectID, "project", "", "project ID (empty for account-wide themes)")
	listCmd.Flags().StringVar(&outJSON, "json", "", "write the list as JSON to this path")
	_ = listCmd.MarkFlagRequired("account")

	synthesizeCmd.Flags().StringVar(&accountID, "account", "", "account ID (required)")
	synthesizeCmd.Flags().StringVar(&projectID, "project", "", "project ID (required)")
	synthesizeCmd.Flags().StringSliceVar(&evidenceIDs, "evidence", nil, "synthesize only these evidence IDs")
	synthesizeCmd.Flags().StringVar(&guidance, "guidance", "", "extra instructions for the theme generator")
	synthesizeCmd.Flags().IntVar(&limit, "limit", 0, "max evidence rows to load (default: synthesis.evidence_limit)")
	synthesizeCmd.Flags().StringVar(&outJSON, "json", "", "write the result as JSON to this path")
	synthesizeCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout (default 5m)")
	_ = synthesizeCmd.MarkFlagRequired("account")
	// evidence is only loaded for a project
	_ = synthesizeCmd.MarkFlagRequired("project")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout())
	defer cancel()

	p, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	if verbose {
		fmt.Fprintf(os.Stderr, "Synthesizing themes for account=%s project=%s\n", accountID, projectID)
	}

	res, err := p.Synthesize(ctx, model.SynthesisRequest{
		Scope:       model.Scope{AccountID: accountID, ProjectID: projectID},
		EvidenceIDs: evidenceIDs,
		Guidance:    guidance,
		Limit:       limit,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	r := pipeline.NewRenderer(cmd.OutOrStdout())
	r.SynthesisSummary(res)
	if outJSON != "" {
		if err := r.RenderJSON(res, outJSON); err != nil {
			return err
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout())
	defer cancel()

	p, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	themes, err := p.Themes(ctx, model.Scope{AccountID: accountID, ProjectID: projectID})
	if err != nil {
		return fmt.Errorf("list themes: %w", err)
	}

	r := pipeline.NewRenderer(cmd.OutOrStdout())
	r.ThemeList(themes)
	if outJSON != "" {
		return r.RenderJSON(themes, outJSON)
	}
	return nil
}
