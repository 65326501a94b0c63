// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/pkg/types"
)

// jobFile is the YAML shape read by the batch command.
type jobFile struct {
	Jobs []types.JobParams `yaml:"jobs"`
}

var batchCmd = &cobra.Command{
	Use:   "batch [jobs.yaml]",
	Short: "Run a YAML job list through the pipeline",
	Long: `Batch reads a YAML file of jobs and runs each through the full pipeline.
Jobs run sequentially by default, so each article is checked against every
one approved before it; --concurrent trades that strict ordering for
throughput. The batch summary reports approved, rejected, and regenerated
counts.

Example jobs file:

  jobs:
    - topic: Go iterators
      audience: intermediate Go developers
      keywords: [range-over-func]
    - topic: Profile-guided optimization
      style: practical walkthrough`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Bool("concurrent", false, "run jobs concurrently instead of sequentially")
	batchCmd.Flags().String("model", "", "generative model identifier")
	batchCmd.Flags().String("embed-model", "", "embedding model (empty = lexical-only similarity)")
	batchCmd.Flags().String("base-url", "", "generative API base URL")
	batchCmd.Flags().String("api-key", "", "generative API key (default: .secrets/generative-api-key)")
	batchCmd.Flags().String("notes-dir", "", "directory of source material files")
	batchCmd.Flags().String("output-dir", "", "directory for finished articles")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading jobs file: %w", err)
	}
	var file jobFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing jobs file %s: %w", args[0], err)
	}
	if len(file.Jobs) == 0 {
		return fmt.Errorf("jobs file %s lists no jobs", args[0])
	}

	jobs := make([]*types.JobParams, len(file.Jobs))
	for i := range file.Jobs {
		jobs[i] = &file.Jobs[i]
	}

	cfg := pipelineConfig(cmd)
	orch, store, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	concurrent, _ := cmd.Flags().GetBool("concurrent")
	reports := orch.GenerateBatch(context.Background(), jobs, !concurrent)

	failed := 0
	for _, r := range reports {
		if err := store.SaveReport(context.Background(), &r.ReportRecord); err != nil {
			fmt.Fprintf(os.Stderr, "warning: saving report for %s: %v\n", r.JobID, err)
		}
		printReport(r)
		if r.Outcome != types.OutcomeApproved {
			failed++
		}
	}

	summary := orch.BatchSummary()
	fmt.Printf("\nBatch: %d jobs, %d approved, %d rejected, %d regenerated\n",
		summary.Total(), summary.Approved, summary.Rejected, summary.Regenerated)

	if failed > 0 {
		return fmt.Errorf("%d job(s) did not produce an approved article", failed)
	}
	return nil
}
