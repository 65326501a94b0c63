// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/archive"
	"github.com/pdiddy/content-engine/internal/genai"
	"github.com/pdiddy/content-engine/internal/regen"
	"github.com/pdiddy/content-engine/internal/similarity"
	"github.com/pdiddy/content-engine/internal/stages"
	"github.com/pdiddy/content-engine/pkg/types"
)

// generateTimeout bounds one generative API call, including backoff waits
// inside the HTTP layer.
const generateTimeout = 120 * time.Second

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate one article through the full pipeline",
	Long: `Generate runs a single job: fetches source notes, builds a prompt, calls
the generative API, enriches the draft, and writes the finished article under
the output directory. The article is checked against the session's batch
memory and regenerated with varied instructions when it duplicates an
earlier one.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("topic", "", "article topic (or pass it as the positional argument)")
	generateCmd.Flags().String("audience", "", "intended audience")
	generateCmd.Flags().String("style", "", "writing style instruction")
	generateCmd.Flags().StringSlice("keyword", nil, "keyword the article must include (repeatable)")
	generateCmd.Flags().Int("target-words", 0, "requested article length (default 800)")
	generateCmd.Flags().String("model", "", "generative model identifier")
	generateCmd.Flags().String("embed-model", "", "embedding model (empty = lexical-only similarity)")
	generateCmd.Flags().String("base-url", "", "generative API base URL")
	generateCmd.Flags().String("api-key", "", "generative API key (default: .secrets/generative-api-key)")
	generateCmd.Flags().String("notes-dir", "", "directory of source material files")
	generateCmd.Flags().String("output-dir", "", "directory for finished articles")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" && len(args) > 0 {
		topic = strings.Join(args, " ")
	}
	if topic == "" {
		return fmt.Errorf("provide a topic: content-engine generate \"My Topic\"")
	}

	cfg := pipelineConfig(cmd)
	orch, store, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	audience, _ := cmd.Flags().GetString("audience")
	style, _ := cmd.Flags().GetString("style")
	keywords, _ := cmd.Flags().GetStringSlice("keyword")
	targetWords, _ := cmd.Flags().GetInt("target-words")

	params := &types.JobParams{
		Topic:       topic,
		Audience:    audience,
		Style:       style,
		Keywords:    keywords,
		TargetWords: targetWords,
	}

	report := orch.Generate(context.Background(), params)
	if err := store.SaveReport(context.Background(), &report.ReportRecord); err != nil {
		fmt.Fprintf(os.Stderr, "warning: saving report: %v\n", err)
	}
	printReport(report)

	if report.Outcome != types.OutcomeApproved {
		return fmt.Errorf("job %s finished %s", report.JobID, report.Outcome)
	}
	return nil
}

// --- shared helpers ---

// pipelineConfig assembles the effective configuration: documented defaults,
// overlaid by the config file, overlaid by flags.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	if v := viper.GetString("generation.model"); v != "" {
		cfg.Generation.Model = v
	}
	if v := viper.GetString("generation.embed_model"); v != "" {
		cfg.Generation.EmbedModel = v
	}
	if v := viper.GetString("generation.base_url"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := viper.GetString("generation.notes_dir"); v != "" {
		cfg.Generation.NotesDir = v
	}
	if v := viper.GetString("generation.output_dir"); v != "" {
		cfg.Generation.OutputDir = v
	}
	if v := viper.GetInt("generation.target_words"); v > 0 {
		cfg.Generation.TargetWords = v
	}
	if v := viper.GetInt("quality.min_words"); v > 0 {
		cfg.Quality.MinWords = v
	}
	if v := viper.GetInt("quality.min_sections"); v > 0 {
		cfg.Quality.MinSections = v
	}
	if v := viper.GetInt("quality.max_gate_retries"); v > 0 {
		cfg.Quality.MaxGateRetries = v
	}
	if v := viper.GetFloat64("similarity.threshold"); v > 0 {
		cfg.Similarity.Threshold = v
	}
	if viper.IsSet("similarity.allow_regeneration") {
		cfg.Similarity.AllowRegeneration = viper.GetBool("similarity.allow_regeneration")
	}
	if v := viper.GetInt("regeneration.max_attempts"); v > 0 {
		cfg.Regeneration.MaxAttempts = v
	}

	// Flags win over the config file.
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Generation.Model = v
	}
	if v, _ := cmd.Flags().GetString("embed-model"); v != "" {
		cfg.Generation.EmbedModel = v
	}
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("notes-dir"); v != "" {
		cfg.Generation.NotesDir = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.Generation.OutputDir = v
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	cfg.Generation.APIKey = secretDefault("generative-api-key", apiKey)

	return cfg
}

// buildOrchestrator wires the generative client, session archive, similarity
// engine, scheduler, and orchestrator for one invocation. The caller closes
// the returned store.
func buildOrchestrator(cfg types.PipelineConfig) (*regen.Orchestrator, *archive.Store, error) {
	if cfg.Generation.BaseURL == "" {
		return nil, nil, fmt.Errorf("no generative API base URL: set --base-url or generation.base_url")
	}

	store, err := archive.NewStore(cfg.Generation.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	client := genai.NewHTTPClient(cfg.Generation.AIConfig, generateTimeout)

	var embedder similarity.Embedder
	if cfg.Generation.EmbedModel != "" {
		embedder = client
	}
	engine := similarity.NewEngine(cfg.Similarity, embedder)

	scheduler := stages.BuildScheduler(cfg, client, store, os.Stdout)
	return regen.NewOrchestrator(scheduler, engine, cfg.Regeneration, os.Stdout), store, nil
}

// printReport summarizes one job's attempts and outcome.
func printReport(r *regen.Report) {
	fmt.Printf("\n%s: %s", r.JobID, r.Outcome)
	if r.FinalSlug != "" {
		fmt.Printf(" -> %s", r.FinalSlug)
	}
	fmt.Println()
	for _, a := range r.Attempts {
		line := fmt.Sprintf("  attempt %d", a.Number)
		if a.Strategy != "" {
			line += fmt.Sprintf(" [%s]", a.Strategy)
		}
		if a.Error != "" {
			line += ": error: " + a.Error
		} else {
			line += fmt.Sprintf(": similarity %.1f", a.Score)
			if a.Success {
				line += ", approved"
			}
		}
		fmt.Println(line)
	}
}
