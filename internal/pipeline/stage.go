// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "context"

// Stage is one unit of pipeline work. Run reads earlier slots from the
// execution context and writes the stage's own slot, or fails. A stage must
// tolerate being re-run on the same context: quality-gate restarts re-invoke
// the generation sub-range after its slots are cleared.
type Stage interface {
	// Ordinal is the stage's fixed position identity, unique within a
	// pipeline.
	Ordinal() int

	// Name is the stage's human-readable label, used as a slot key and
	// in the timing and error logs.
	Name() string

	Run(ctx context.Context, ec *Context) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	Ord int
	Lbl string
	Fn  func(ctx context.Context, ec *Context) error
}

func (s StageFunc) Ordinal() int { return s.Ord }
func (s StageFunc) Name() string { return s.Lbl }

func (s StageFunc) Run(ctx context.Context, ec *Context) error {
	return s.Fn(ctx, ec)
}

// SequentialStage pairs a stage with its failure policy. A critical stage's
// failure aborts the run; a non-critical failure is logged and the pipeline
// continues with the context unchanged.
type SequentialStage struct {
	Stage    Stage
	Critical bool
}

// ConditionalStage runs only when its predicate holds against the current
// context. Its failure is logged but never aborts the pipeline.
type ConditionalStage struct {
	Stage Stage
	When  func(ec *Context) bool
}
