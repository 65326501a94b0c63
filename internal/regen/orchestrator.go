// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package regen wraps the pipeline scheduler in a cross-attempt loop driven
// by the similarity engine. Where the scheduler's internal quality gate
// re-runs a sub-range of stages, this loop restarts the entire pipeline with
// deliberately varied inputs when a job's output duplicates an article
// already accepted in the batch.
package regen

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/similarity"
	"github.com/pdiddy/content-engine/internal/slug"
	"github.com/pdiddy/content-engine/pkg/types"
)

// VariationStrategy contributes one instruction that pushes a regenerated
// attempt away from the article it duplicated.
type VariationStrategy struct {
	Name        string
	Instruction string
}

// variationStrategies is the fixed rotation applied to attempts after the
// first: attempt 2 uses the first entry, attempt 3 the second, and so on.
var variationStrategies = []VariationStrategy{
	{
		Name:        "angle",
		Instruction: "Approach the topic from a different angle than the obvious one: lead with a contrarian or less-covered perspective.",
	},
	{
		Name:        "example-set",
		Instruction: "Use a completely different set of examples and case studies than a typical article on this topic would.",
	},
	{
		Name:        "writing-style",
		Instruction: "Shift the writing style: if the obvious treatment is a formal overview, write it as a hands-on walkthrough, or vice versa.",
	},
	{
		Name:        "technical-depth",
		Instruction: "Change the technical depth noticeably: go either substantially deeper into internals or higher-level than the standard treatment.",
	},
	{
		Name:        "target-audience",
		Instruction: "Write for an adjacent audience: practitioners instead of decision-makers, or newcomers instead of experts.",
	},
}

const defaultMaxAttempts = 3

// Report is the orchestrator's output for one job: the serializable record
// plus the approved attempt's execution context, when one exists.
type Report struct {
	types.ReportRecord

	// Context is the approved attempt's execution context. Nil unless
	// Outcome is approved.
	Context *pipeline.Context
}

// Orchestrator runs jobs through the scheduler with similarity-driven
// regeneration. One orchestrator owns one batch session: its engine's
// memory accumulates accepted articles across jobs so later jobs are
// deduplicated against earlier ones.
type Orchestrator struct {
	scheduler *pipeline.Scheduler
	engine    *similarity.Engine
	cfg       types.RegenConfig
	progress  io.Writer

	mu    sync.Mutex
	stats types.BatchSummary
}

// NewOrchestrator builds an orchestrator over an existing scheduler and
// similarity engine.
func NewOrchestrator(scheduler *pipeline.Scheduler, engine *similarity.Engine, cfg types.RegenConfig, progress io.Writer) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Orchestrator{
		scheduler: scheduler,
		engine:    engine,
		cfg:       cfg,
		progress:  progress,
	}
}

// Generate runs one job to a terminal outcome. Expected outcomes — too
// similar, attempts exhausted, per-attempt pipeline errors — are reported
// as data; Generate itself never fails.
func (o *Orchestrator) Generate(ctx context.Context, params *types.JobParams) *Report {
	baseID := slug.Make(params.Topic)
	report := &Report{ReportRecord: types.ReportRecord{
		JobID: baseID,
		Topic: params.Topic,
	}}

	// Work on a copy so strategy instructions never leak back into the
	// caller's params. Instructions accumulate across attempts: each
	// retry keeps pushing further from the duplicated article.
	working := params.Clone()

	sawError := false
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		jobID := baseID
		strategyName := ""
		if attempt > 1 {
			strategy := variationStrategies[(attempt-2)%len(variationStrategies)]
			strategyName = strategy.Name
			working.Variations = append(working.Variations, strategy.Instruction)
			jobID = fmt.Sprintf("%s-attempt%d-%s", baseID, attempt, strategyName)
			o.progressf("job %s: attempt %d with %s variation\n", baseID, attempt, strategyName)
		}

		record := types.AttemptRecord{Number: attempt, Strategy: strategyName}
		start := time.Now()

		ec, err := o.scheduler.Execute(ctx, jobID, working)
		record.Duration = time.Since(start)
		if err != nil {
			// A pipeline error is consumed per attempt; the loop
			// continues while attempts remain.
			record.Error = err.Error()
			report.Attempts = append(report.Attempts, record)
			sawError = true
			o.progressf("job %s: attempt %d failed: %v\n", baseID, attempt, err)
			continue
		}
		sawError = false

		result := o.engine.Check(ctx, ec.Final)
		ec.Similarity = &result
		record.Score = result.Score

		if !result.TooSimilar {
			id, addErr := o.engine.Add(ctx, ec.Final)
			if addErr != nil {
				record.Error = addErr.Error()
			}
			record.Success = true
			report.Attempts = append(report.Attempts, record)
			report.Outcome = types.OutcomeApproved
			report.FinalSlug = id
			report.Context = ec

			o.mu.Lock()
			o.stats.Approved++
			if attempt > 1 {
				o.stats.Regenerated++
			}
			o.mu.Unlock()

			o.progressf("job %s: approved on attempt %d (score %.1f)\n", baseID, attempt, result.Score)
			return report
		}

		report.Attempts = append(report.Attempts, record)
		o.progressf("job %s: attempt %d too similar to %s (score %.1f)\n",
			baseID, attempt, result.MatchedID, result.Score)

		if !result.RegenerationNeeded || attempt == o.cfg.MaxAttempts {
			report.Outcome = types.OutcomeRejected
			o.mu.Lock()
			o.stats.Rejected++
			o.mu.Unlock()
			return report
		}
	}

	// Reachable only when the last attempt errored out of the scheduler.
	if sawError {
		report.Outcome = types.OutcomeExhausted
	} else {
		report.Outcome = types.OutcomeRejected
	}
	o.mu.Lock()
	o.stats.Rejected++
	o.mu.Unlock()
	return report
}

// GenerateBatch runs a list of jobs. Sequential mode is the supported
// default: each job's dedup check then sees every prior job's accepted
// article. Concurrent mode runs jobs in parallel and accepts the known race
// where two jobs can pass dedup against each other before either registers.
func (o *Orchestrator) GenerateBatch(ctx context.Context, jobs []*types.JobParams, sequential bool) []*Report {
	reports := make([]*Report, len(jobs))

	if sequential {
		for i, job := range jobs {
			if i > 0 && o.cfg.JobDelay > 0 {
				select {
				case <-ctx.Done():
					return reports[:i]
				case <-time.After(o.cfg.JobDelay):
				}
			}
			reports[i] = o.Generate(ctx, job)
		}
		return reports
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = o.Generate(ctx, job)
		}()
	}
	wg.Wait()
	return reports
}

// BatchSummary returns the aggregate counts for this session.
func (o *Orchestrator) BatchSummary() types.BatchSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// ClearBatch resets the aggregate counts and empties the similarity
// engine's batch memory.
func (o *Orchestrator) ClearBatch() {
	o.mu.Lock()
	o.stats = types.BatchSummary{}
	o.mu.Unlock()
	o.engine.Clear()
}

func (o *Orchestrator) progressf(format string, args ...any) {
	if o.progress != nil {
		fmt.Fprintf(o.progress, format, args...)
	}
}
