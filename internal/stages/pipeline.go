// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"io"
	"net/http"

	"github.com/pdiddy/content-engine/internal/genai"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// BuildScheduler wires the standard article pipeline: fetch → prompt →
// generate → extract sequentially, an optional refine pass, citations /
// links / image concurrently, then merge and finalize. Fetch, prompt,
// generate, merge, and finalize are critical; extract falls back to the
// raw draft, refine and the enrichments are best-effort.
func BuildScheduler(cfg types.PipelineConfig, client genai.Client, archive Archiver, progress io.Writer) *pipeline.Scheduler {
	return &pipeline.Scheduler{
		Name: "article",
		Sequential: []pipeline.SequentialStage{
			{Stage: &FetchStage{NotesDir: cfg.Generation.NotesDir}, Critical: true},
			{Stage: &PromptStage{TargetWords: cfg.Generation.TargetWords}, Critical: true},
			{Stage: &GenerateStage{Client: client}, Critical: true},
			{Stage: &ExtractStage{}, Critical: false},
		},
		Conditional: &pipeline.ConditionalStage{
			Stage: &RefineStage{Client: client},
			When:  NeedsRefinement(cfg.Quality.MinWords),
		},
		Concurrent: []pipeline.Stage{
			&CitationsStage{},
			&LinksStage{
				Client: &http.Client{Timeout: cfg.Links.Timeout},
				Config: cfg.Links,
			},
			&ImageStage{Client: client},
		},
		Merge:          &MergeStage{Config: cfg.Quality},
		Final:          &FinalizeStage{OutputDir: cfg.Generation.OutputDir, Archive: archive},
		RestartFrom:    NameGenerate,
		MaxGateRetries: cfg.Quality.MaxGateRetries,
		Progress:       progress,
	}
}
