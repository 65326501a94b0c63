// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package regen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/similarity"
	"github.com/pdiddy/content-engine/pkg/types"
)

// fakeGenerator produces draft text per call. It lets tests force
// duplicates, unique output after variation, or hard failures. Call
// counting is locked so concurrent batch tests stay race-free.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, params *types.JobParams) (string, error)
}

func (g *fakeGenerator) generate(params *types.JobParams) (string, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	return g.fn(call, params)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// testScheduler builds a minimal real scheduler around the fake generator:
// the orchestrator's contract is with Execute, not with any concrete stage.
func testScheduler(gen *fakeGenerator) *pipeline.Scheduler {
	sf := func(ord int, name string, fn func(ec *pipeline.Context) error) pipeline.Stage {
		return pipeline.StageFunc{Ord: ord, Lbl: name, Fn: func(_ context.Context, ec *pipeline.Context) error {
			return fn(ec)
		}}
	}
	return &pipeline.Scheduler{
		Name: "test",
		Sequential: []pipeline.SequentialStage{
			{Stage: sf(0, "fetch", func(ec *pipeline.Context) error {
				ec.Source = &types.SourceMaterial{}
				return nil
			}), Critical: true},
			{Stage: sf(1, "generate", func(ec *pipeline.Context) error {
				draft, err := gen.generate(ec.Params)
				if err != nil {
					return err
				}
				ec.RawDraft = draft
				return nil
			}), Critical: true},
		},
		Merge: sf(2, "merge", func(ec *pipeline.Context) error {
			ec.Merged = &types.MergedDraft{Title: ec.Params.Topic, Body: ec.RawDraft}
			ec.Quality = &types.QualityReport{Accepted: true}
			return nil
		}),
		Final: sf(3, "finalize", func(ec *pipeline.Context) error {
			ec.Final = &types.Article{
				Title: ec.Params.Topic,
				Topic: ec.Params.Topic,
				Body:  ec.RawDraft,
				JobID: ec.JobID,
			}
			return nil
		}),
		RestartFrom: "generate",
	}
}

func testEngine() *similarity.Engine {
	return similarity.NewEngine(types.SimilarityConfig{
		ShingleSize:       3,
		LexicalWeight:     1,
		SemanticWeight:    0,
		Threshold:         60,
		AllowRegeneration: true,
	}, nil)
}

const draftA = `## Pipelines

A staged pipeline separates fetching, generation, and export so each part
can fail and retry independently of the others.

## Scheduling

The scheduler runs critical stages in order and joins concurrent
enrichments at a barrier before merging their results.`

const draftB = `## Observability

Structured logs and per-stage timings make a long-running batch job
debuggable after the fact, without attaching a debugger.

## Budgets

Retry budgets keep a misbehaving model call from consuming the whole
batch window with exponential backoff sleeps.`

func newOrchestrator(gen *fakeGenerator, engine *similarity.Engine) *Orchestrator {
	return NewOrchestrator(testScheduler(gen), engine, types.RegenConfig{MaxAttempts: 3}, nil)
}

func TestGenerateApprovedFirstAttempt(t *testing.T) {
	gen := &fakeGenerator{fn: func(int, *types.JobParams) (string, error) { return draftA, nil }}
	o := newOrchestrator(gen, testEngine())

	report := o.Generate(context.Background(), &types.JobParams{Topic: "Staged Pipelines"})

	if report.Outcome != types.OutcomeApproved {
		t.Fatalf("Outcome = %q, want approved", report.Outcome)
	}
	if len(report.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(report.Attempts))
	}
	if report.Attempts[0].Strategy != "" {
		t.Error("first attempt must carry no variation strategy")
	}
	if !report.Attempts[0].Success {
		t.Error("attempt record should be marked successful")
	}
	if report.FinalSlug != "staged-pipelines" {
		t.Errorf("FinalSlug = %q", report.FinalSlug)
	}
	if report.Context == nil || report.Context.Similarity == nil {
		t.Error("approved report must attach the context with its similarity result")
	}
}

// A duplicate first attempt triggers a variation strategy; the varied
// second attempt produces different content and is approved.
func TestGenerateRegeneratesDuplicate(t *testing.T) {
	engine := testEngine()
	if _, err := engine.Add(context.Background(), &types.Article{Title: "Prior Article", Body: draftA}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	gen := &fakeGenerator{fn: func(call int, params *types.JobParams) (string, error) {
		if len(params.Variations) == 0 {
			return draftA, nil // duplicate of the prior article
		}
		return draftB, nil // variation applied, fresh content
	}}
	o := newOrchestrator(gen, engine)

	report := o.Generate(context.Background(), &types.JobParams{Topic: "Staged Pipelines"})

	if report.Outcome != types.OutcomeApproved {
		t.Fatalf("Outcome = %q, want approved, attempts: %+v", report.Outcome, report.Attempts)
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(report.Attempts))
	}
	if report.Attempts[0].Success || report.Attempts[0].Score < 60 {
		t.Errorf("first attempt should be a rejected duplicate: %+v", report.Attempts[0])
	}
	if report.Attempts[1].Strategy != "angle" {
		t.Errorf("second attempt strategy = %q, want angle", report.Attempts[1].Strategy)
	}
	if report.Context.JobID != "staged-pipelines-attempt2-angle" {
		t.Errorf("JobID = %q, want attempt-suffixed identifier", report.Context.JobID)
	}

	summary := o.BatchSummary()
	if summary.Approved != 1 || summary.Regenerated != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestGenerateDistinctStrategiesAcrossAttempts(t *testing.T) {
	engine := testEngine()
	if _, err := engine.Add(context.Background(), &types.Article{Title: "Prior Article", Body: draftA}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Always produce the duplicate so every attempt is rejected.
	gen := &fakeGenerator{fn: func(int, *types.JobParams) (string, error) { return draftA, nil }}
	o := newOrchestrator(gen, engine)

	report := o.Generate(context.Background(), &types.JobParams{Topic: "Staged Pipelines"})

	if report.Outcome != types.OutcomeRejected {
		t.Fatalf("Outcome = %q, want rejected", report.Outcome)
	}
	if len(report.Attempts) != 3 {
		t.Fatalf("attempts = %d, want exactly max_attempts", len(report.Attempts))
	}
	if gen.callCount() != 3 {
		t.Errorf("scheduler invoked %d times, want 3", gen.callCount())
	}
	seen := make(map[string]bool)
	for _, a := range report.Attempts[1:] {
		if a.Strategy == "" {
			t.Error("retry attempts must carry a strategy")
		}
		if seen[a.Strategy] {
			t.Errorf("strategy %q repeated within max_attempts", a.Strategy)
		}
		seen[a.Strategy] = true
	}
}

func TestGenerateRegenerationDisabled(t *testing.T) {
	engine := similarity.NewEngine(types.SimilarityConfig{
		ShingleSize: 3, LexicalWeight: 1, Threshold: 60, AllowRegeneration: false,
	}, nil)
	if _, err := engine.Add(context.Background(), &types.Article{Title: "Prior", Body: draftA}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	gen := &fakeGenerator{fn: func(int, *types.JobParams) (string, error) { return draftA, nil }}
	o := newOrchestrator(gen, engine)

	report := o.Generate(context.Background(), &types.JobParams{Topic: "Staged Pipelines"})

	if report.Outcome != types.OutcomeRejected {
		t.Errorf("Outcome = %q, want rejected", report.Outcome)
	}
	if len(report.Attempts) != 1 {
		t.Errorf("attempts = %d, regeneration disabled must stop after one", len(report.Attempts))
	}
}

func TestGenerateSchedulerErrorsExhaustAttempts(t *testing.T) {
	gen := &fakeGenerator{fn: func(int, *types.JobParams) (string, error) {
		return "", errors.New("model unavailable")
	}}
	o := newOrchestrator(gen, testEngine())

	report := o.Generate(context.Background(), &types.JobParams{Topic: "Staged Pipelines"})

	if report.Outcome != types.OutcomeExhausted {
		t.Fatalf("Outcome = %q, want attempts-exhausted", report.Outcome)
	}
	if len(report.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(report.Attempts))
	}
	for _, a := range report.Attempts {
		if !strings.Contains(a.Error, "model unavailable") {
			t.Errorf("attempt %d error = %q", a.Number, a.Error)
		}
	}
	if report.Context != nil {
		t.Error("no context should be attached without an approved attempt")
	}
}

func TestGenerateRecoversAfterSchedulerError(t *testing.T) {
	gen := &fakeGenerator{fn: func(call int, _ *types.JobParams) (string, error) {
		if call == 1 {
			return "", errors.New("transient failure")
		}
		return draftA, nil
	}}
	o := newOrchestrator(gen, testEngine())

	report := o.Generate(context.Background(), &types.JobParams{Topic: "Staged Pipelines"})

	if report.Outcome != types.OutcomeApproved {
		t.Fatalf("Outcome = %q, want approved after recovery", report.Outcome)
	}
	if len(report.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(report.Attempts))
	}
	if report.Attempts[0].Error == "" {
		t.Error("first attempt should record the scheduler error")
	}
}

// Sequential batch: job 2 duplicates job 1's accepted output, is caught by
// the shared batch memory, and is approved after a variation.
func TestGenerateBatchSequentialDedup(t *testing.T) {
	gen := &fakeGenerator{fn: func(_ int, params *types.JobParams) (string, error) {
		if len(params.Variations) > 0 {
			return draftB, nil
		}
		return draftA, nil
	}}
	o := newOrchestrator(gen, testEngine())

	jobs := []*types.JobParams{
		{Topic: "First Topic"},
		{Topic: "Second Topic"},
	}
	reports := o.GenerateBatch(context.Background(), jobs, true)

	if len(reports) != 2 {
		t.Fatalf("reports = %d", len(reports))
	}
	if reports[0].Outcome != types.OutcomeApproved || len(reports[0].Attempts) != 1 {
		t.Errorf("job 1: %+v", reports[0].ReportRecord)
	}
	// Job 2's first attempt duplicated job 1 and matched its slug.
	if reports[1].Outcome != types.OutcomeApproved {
		t.Fatalf("job 2 outcome = %q", reports[1].Outcome)
	}
	if len(reports[1].Attempts) != 2 {
		t.Fatalf("job 2 attempts = %d, want 2", len(reports[1].Attempts))
	}
	if got := reports[1].Context.Similarity; got == nil {
		t.Error("job 2 should carry its similarity result")
	}

	summary := o.BatchSummary()
	want := types.BatchSummary{Approved: 2, Regenerated: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestGenerateBatchConcurrent(t *testing.T) {
	gen := &fakeGenerator{fn: func(call int, _ *types.JobParams) (string, error) {
		// Distinct content per call so concurrent jobs don't collide.
		return fmt.Sprintf("## Section %d\n\n%s", call, draftB), nil
	}}
	o := newOrchestrator(gen, testEngine())

	jobs := []*types.JobParams{{Topic: "A"}, {Topic: "B"}, {Topic: "C"}}
	reports := o.GenerateBatch(context.Background(), jobs, false)

	for i, r := range reports {
		if r == nil {
			t.Fatalf("report %d missing", i)
		}
	}
	if total := o.BatchSummary().Total(); total != 3 {
		t.Errorf("summary total = %d, want 3", total)
	}
}

func TestClearBatch(t *testing.T) {
	gen := &fakeGenerator{fn: func(int, *types.JobParams) (string, error) { return draftA, nil }}
	engine := testEngine()
	o := newOrchestrator(gen, engine)

	if r := o.Generate(context.Background(), &types.JobParams{Topic: "Topic"}); r.Outcome != types.OutcomeApproved {
		t.Fatalf("setup: %q", r.Outcome)
	}
	if engine.Len() != 1 {
		t.Fatalf("engine holds %d entries", engine.Len())
	}

	o.ClearBatch()

	if got := o.BatchSummary(); got != (types.BatchSummary{}) {
		t.Errorf("summary after clear = %+v", got)
	}
	if engine.Len() != 0 {
		t.Error("batch memory should be cleared")
	}
}
