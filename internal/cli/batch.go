package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/pipeline"
	"github.com/ppiankov/thematic/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the themes batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Synthesize themes for many projects in parallel",
	Long: `Batch runs theme synthesis for every project listed in a file:
- Read project IDs from input file (one per line, # for comments)
- Run projects in parallel with configurable worker count
- Write one JSON result per project

Example:
  thematic themes batch projects.txt --account acme
  thematic themes batch projects.txt --account acme --concurrency 4 --output-dir ./themes`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	themesCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&accountID, "account", "", "account ID (required)")
	batchCmd.Flags().StringVar(&guidance, "guidance", "", "extra instructions for the theme generator")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./thematic-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	_ = batchCmd.MarkFlagRequired("account")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	projects, err := readProjectList(file)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Thematic Batch Synthesis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d projects)\n", file, len(projects))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	outcomes := worker.Map(ctx, worker.NewPool(concurrency), projects,
		func(ctx context.Context, project string) (*model.SynthesisResult, error) {
			return p.Synthesize(ctx, model.SynthesisRequest{
				Scope:    model.Scope{AccountID: accountID, ProjectID: project},
				Guidance: guidance,
			})
		})

	renderer := pipeline.NewRenderer(os.Stderr)
	successCount := 0
	failureCount := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", o.Item, o.Err)
			continue
		}
		jsonPath := filepath.Join(outputDir, sanitizeFilename(o.Item)+".json")
		if err := renderer.RenderJSON(o.Value, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", o.Item, err)
			continue
		}
		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (themes: %d, links: %d)\n", o.Item, len(o.Value.CreatedThemeIDs), o.Value.LinkCount)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d projects\n", len(projects))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d projects failed", failureCount)
	}
	return nil
}

// readProjectList returns the distinct project IDs listed in path, skipping
// blank lines and # comments.
func readProjectList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project list: %w", err)
	}
	defer f.Close()

	var projects []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		projects = append(projects, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read project list: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("no projects in %s", path)
	}
	return projects, nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		s = "project"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
