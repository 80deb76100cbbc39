package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/pipeline"
)

var embedWorkers int

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Load and prepare research evidence",
}

var importCmd = &cobra.Command{
	Use:   "import <file|url>",
	Short: "Import evidence, facets and people from a JSON dataset",
	Long: `Import reads a JSON dataset from a local file or an http(s) URL and
stores its evidence, facets and people under the given account and project.
Evidence IDs already present are skipped, so re-importing is safe.

Example:
  thematic evidence import interviews.json --account acme --project onboarding
  thematic evidence import https://example.com/export.json --account acme --project onboarding`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute embeddings for evidence that has none",
	Long: `Embed finds evidence rows without a stored vector and embeds them in
parallel. Failed rows stay pending and are retried by the next run.

Example:
  thematic evidence embed --project onboarding
  thematic evidence embed --project onboarding --limit 500 --concurrency 8`,
	Args: cobra.NoArgs,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(importCmd)
	evidenceCmd.AddCommand(embedCmd)

	importCmd.Flags().StringVar(&accountID, "account", "", "account ID (required)")
	importCmd.Flags().StringVar(&projectID, "project", "", "project ID")
	importCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout (default 5m)")
	_ = importCmd.MarkFlagRequired("account")

	embedCmd.Flags().StringVar(&projectID, "project", "", "project ID (empty for all projects)")
	embedCmd.Flags().IntVar(&limit, "limit", 0, "max evidence rows to embed (0 for all)")
	embedCmd.Flags().IntVar(&embedWorkers, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	embedCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout (default 5m)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout())
	defer cancel()

	p, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := p.Import(ctx, model.Scope{AccountID: accountID, ProjectID: projectID}, args[0])
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	pipeline.NewRenderer(cmd.OutOrStdout()).ImportSummary(stats)
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout())
	defer cancel()

	p, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := p.Backfill(ctx, projectID, limit, embedWorkers)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	pipeline.NewRenderer(cmd.OutOrStdout()).BackfillSummary(stats)
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d evidence rows failed to embed", stats.Failed, stats.Pending)
	}
	return nil
}
