package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/pipeline"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Derive personas from people and their facets",
}

var personasGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Cluster people by shared facets and describe each cluster as a persona",
	Long: `Generate groups the people of a project by the facets they share,
summarizes each group's pains, goals and quotes, asks the language model to
describe it, drops near-duplicate personas and stores the rest linked to their
people. A contrast persona is added unless persona.contrast is false.

Example:
  thematic personas generate --account acme --project onboarding
  thematic personas generate --account acme --project onboarding --json personas.json`,
	Args: cobra.NoArgs,
	RunE: runPersonas,
}

func init() {
	rootCmd.AddCommand(personasCmd)
	personasCmd.AddCommand(personasGenerateCmd)

	personasGenerateCmd.Flags().StringVar(&accountID, "account", "", "account ID (required)")
	personasGenerateCmd.Flags().StringVar(&projectID, "project", "", "project ID (required)")
	personasGenerateCmd.Flags().StringVar(&outJSON, "json", "", "write the result as JSON to this path")
	personasGenerateCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout (default 5m)")
	_ = personasGenerateCmd.MarkFlagRequired("account")
	_ = personasGenerateCmd.MarkFlagRequired("project")
}

func runPersonas(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout())
	defer cancel()

	p, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := p.GeneratePersonas(ctx, model.PersonaRequest{
		Scope: model.Scope{AccountID: accountID, ProjectID: projectID},
	})
	if err != nil {
		return fmt.Errorf("generate personas: %w", err)
	}

	r := pipeline.NewRenderer(cmd.OutOrStdout())
	r.PersonaSummary(res)
	if outJSON != "" {
		return r.RenderJSON(res, outJSON)
	}
	return nil
}
