// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sync"
	"time"

	"github.com/pdiddy/content-engine/pkg/types"
)

// Context is the record threaded through every stage of one job. Each
// result slot is written by exactly one stage; slots are never cleared
// except by a quality-gate restart, which wipes the generation-dependent
// subset. A Context is owned by a single job and never shared between jobs.
type Context struct {
	// JobID identifies the job. Immutable after creation.
	JobID string

	// Params are the caller's inputs. Mutable between attempts — the one
	// exception to accumulate-only.
	Params *types.JobParams

	// Source is the fetch stage's slot. Survives quality-gate restarts.
	Source *types.SourceMaterial

	// Prompt is the prompt stage's slot: the base prompt before any
	// gate or variation instructions. Survives quality-gate restarts.
	Prompt string

	// RawDraft is the generate stage's slot.
	RawDraft string

	// Structured is the extract stage's slot.
	Structured *types.StructuredDraft

	// Concurrent maps concurrent-stage name to that stage's enrichment.
	// Each concurrent stage writes only its own key.
	Concurrent map[string]types.Enrichment

	// Merged and Quality are the merge stage's slots.
	Merged  *types.MergedDraft
	Quality *types.QualityReport

	// Final and Export are the finalize stage's slots.
	Final  *types.Article
	Export *types.ExportResult

	// Similarity is attached by the orchestrator after checking the
	// final article against batch memory.
	Similarity *types.SimilarityResult

	// Timings maps stage name to execution time. Append-only.
	Timings map[string]time.Duration

	// Errors maps stage name to error detail. Append-only.
	Errors map[string]string

	// GateAttempts counts quality-gate restarts for this context.
	GateAttempts int

	// QualityDegraded is set when the gate exhausted its restarts and
	// the article was produced anyway.
	QualityDegraded bool

	// mu guards the maps above during the concurrent phase. Sequential
	// stages run on a single goroutine and contend with nothing.
	mu sync.Mutex
}

// NewContext builds a fresh context for one job.
func NewContext(jobID string, params *types.JobParams) *Context {
	return &Context{
		JobID:      jobID,
		Params:     params,
		Concurrent: make(map[string]types.Enrichment),
		Timings:    make(map[string]time.Duration),
		Errors:     make(map[string]string),
	}
}

// SetEnrichment stores a concurrent stage's result under its own name.
func (c *Context) SetEnrichment(name string, e types.Enrichment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Concurrent[name] = e
}

// RecordTiming appends a stage's execution time.
func (c *Context) RecordTiming(stage string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Timings[stage] = d
}

// RecordError appends a stage's error detail.
func (c *Context) RecordError(stage string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors[stage] = err.Error()
}

// ErrorFor returns the recorded error detail for a stage, if any.
func (c *Context) ErrorFor(stage string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.Errors[stage]
	return msg, ok
}

// clearGenerated wipes the slots that depend on generation output before a
// quality-gate restart. Source and Prompt are kept: re-fetching input is
// never part of a retry, and gate instructions reach the generate stage
// through Params, not through the base prompt.
func (c *Context) clearGenerated() {
	c.RawDraft = ""
	c.Structured = nil
	c.Concurrent = make(map[string]types.Enrichment)
	c.Merged = nil
	c.Quality = nil
}
