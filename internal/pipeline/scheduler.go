// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one content-generation job through its stages:
// a sequential phase, an optional conditional pass, a concurrent enrichment
// phase joined at a barrier, and a quality-gated finalize phase with a
// bounded restart loop.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/content-engine/pkg/types"
)

// Gate instructions injected into job params between quality restarts.
const (
	strictInstruction = "Follow the requested structure strictly: cover every section in full depth, " +
		"work in each keyword explicitly, and do not compress or omit sections."
	relaxedInstruction = "Loosen the structure where it helps: prefer fewer, longer sections and plain " +
		"explanations over strict outline coverage."
)

const defaultMaxGateRetries = 3

// Scheduler executes a fixed, registered set of stages for one job at a
// time. Construct one per pipeline shape and reuse it across jobs; all
// per-job state lives in the Context.
type Scheduler struct {
	// Name labels the pipeline in progress output.
	Name string

	// Sequential stages run first, in registration order, each seeing
	// the full effect of all prior ones.
	Sequential []SequentialStage

	// Conditional optionally runs one stage between the sequential and
	// concurrent phases.
	Conditional *ConditionalStage

	// Concurrent stages launch together after the conditional phase and
	// are joined at a barrier. Each writes only its own named slot in
	// the context's concurrent-result mapping; a unit's failure is
	// logged and contributes nothing.
	Concurrent []Stage

	// Merge consumes sequential and concurrent results into a merged
	// draft plus a quality report. Always critical.
	Merge Stage

	// Final runs once the quality gate passes or exhausts its restarts.
	// Always critical.
	Final Stage

	// RestartFrom names the sequential stage a quality-gate restart
	// resumes from. Stages before it keep their slots.
	RestartFrom string

	// MaxGateRetries bounds quality-gate restarts (default 3).
	MaxGateRetries int

	// Progress receives human-readable execution notes. Nil discards.
	Progress io.Writer
}

// Execute builds a fresh context for the job and drives it through all four
// phases. Expected business outcomes — a rejected quality report, degraded
// output after gate exhaustion — come back as data on the context; only a
// critical stage failure returns an error. An empty jobID gets a generated
// UUID.
func (s *Scheduler) Execute(ctx context.Context, jobID string, params *types.JobParams) (*Context, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if jobID == "" {
		jobID = uuid.New().String()
	}

	ec := NewContext(jobID, params)
	s.progressf("[%s] starting job %s\n", s.Name, jobID)

	if err := s.runSequential(ctx, ec, 0); err != nil {
		return nil, err
	}

	maxRetries := s.MaxGateRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxGateRetries
	}
	restartIdx := s.restartIndex()

	// The quality gate is an explicit bounded loop: conditional phase,
	// concurrent phase, merge, then either accept, restart the
	// generation sub-range, or give up and mark the output degraded.
	for {
		s.runConditional(ctx, ec)

		s.runConcurrent(ctx, ec)

		if err := s.runStage(ctx, ec, s.Merge); err != nil {
			ec.RecordError(s.Merge.Name(), err)
			return nil, fmt.Errorf("stage %s: %w", s.Merge.Name(), err)
		}

		if ec.Quality == nil || ec.Quality.Accepted {
			break
		}

		if ec.GateAttempts >= maxRetries {
			ec.QualityDegraded = true
			ec.Quality.Degraded = true
			s.progressf("[%s] quality gate exhausted after %d restarts, continuing degraded\n", s.Name, ec.GateAttempts)
			break
		}

		ec.GateAttempts++
		applyGateAdjustment(ec.Params, ec.GateAttempts)
		ec.clearGenerated()
		s.progressf("[%s] quality gate rejected (%v), restart %d from %q\n",
			s.Name, ec.Quality.Issues, ec.GateAttempts, s.RestartFrom)

		if err := s.runSequential(ctx, ec, restartIdx); err != nil {
			return nil, err
		}
	}

	if err := s.runStage(ctx, ec, s.Final); err != nil {
		ec.RecordError(s.Final.Name(), err)
		return nil, fmt.Errorf("stage %s: %w", s.Final.Name(), err)
	}

	s.progressf("[%s] finished job %s\n", s.Name, jobID)
	return ec, nil
}

// runSequential runs Sequential[from:] in registration order. A critical
// failure aborts; a non-critical one is logged and the context carries on
// unchanged.
func (s *Scheduler) runSequential(ctx context.Context, ec *Context, from int) error {
	for _, seq := range s.Sequential[from:] {
		if err := s.runStage(ctx, ec, seq.Stage); err != nil {
			ec.RecordError(seq.Stage.Name(), err)
			if seq.Critical {
				return fmt.Errorf("stage %s: %w", seq.Stage.Name(), err)
			}
			s.progressf("[%s] non-critical stage %s failed: %v\n", s.Name, seq.Stage.Name(), err)
		}
	}
	return nil
}

// runConditional runs the conditional stage when its predicate holds. Its
// failure never aborts the pipeline.
func (s *Scheduler) runConditional(ctx context.Context, ec *Context) {
	if s.Conditional == nil || !s.Conditional.When(ec) {
		return
	}
	st := s.Conditional.Stage
	if err := s.runStage(ctx, ec, st); err != nil {
		ec.RecordError(st.Name(), err)
		s.progressf("[%s] conditional stage %s failed: %v\n", s.Name, st.Name(), err)
	}
}

// runConcurrent launches every concurrent stage and waits for all of them,
// successful or not. Failed units are recorded and contribute nothing;
// nothing cancels a sibling.
func (s *Scheduler) runConcurrent(ctx context.Context, ec *Context) {
	if len(s.Concurrent) == 0 {
		return
	}

	var g errgroup.Group
	for _, st := range s.Concurrent {
		st := st
		g.Go(func() error {
			start := time.Now()
			err := st.Run(ctx, ec)
			ec.RecordTiming(st.Name(), time.Since(start))
			if err != nil {
				ec.RecordError(st.Name(), err)
				s.progressf("[%s] concurrent stage %s failed: %v\n", s.Name, st.Name(), err)
			}
			// Unit failures are captured per-stage, never returned:
			// returning an error here would race siblings for the
			// group error, and no unit may abort the barrier.
			return nil
		})
	}
	g.Wait()
}

// runStage runs one stage, recording its execution time.
func (s *Scheduler) runStage(ctx context.Context, ec *Context, st Stage) error {
	start := time.Now()
	err := st.Run(ctx, ec)
	ec.RecordTiming(st.Name(), time.Since(start))
	return err
}

// applyGateAdjustment mutates params for the numbered restart: the first
// injects stricter instructions, the second relaxed ones, later restarts
// change nothing.
func applyGateAdjustment(params *types.JobParams, attempt int) {
	switch attempt {
	case 1:
		params.QualityInstruction = strictInstruction
	case 2:
		params.QualityInstruction = relaxedInstruction
	}
}

// restartIndex resolves RestartFrom to a sequential index. validate has
// already confirmed the name exists.
func (s *Scheduler) restartIndex() int {
	for i, seq := range s.Sequential {
		if seq.Stage.Name() == s.RestartFrom {
			return i
		}
	}
	return 0
}

func (s *Scheduler) validate() error {
	if len(s.Sequential) == 0 {
		return fmt.Errorf("pipeline %s: no sequential stages registered", s.Name)
	}
	if s.Merge == nil {
		return fmt.Errorf("pipeline %s: no merge stage registered", s.Name)
	}
	if s.Final == nil {
		return fmt.Errorf("pipeline %s: no final stage registered", s.Name)
	}
	if s.RestartFrom == "" {
		return fmt.Errorf("pipeline %s: no restart stage named", s.Name)
	}
	for _, seq := range s.Sequential {
		if seq.Stage.Name() == s.RestartFrom {
			return nil
		}
	}
	return fmt.Errorf("pipeline %s: restart stage %q is not a sequential stage", s.Name, s.RestartFrom)
}

func (s *Scheduler) progressf(format string, args ...any) {
	if s.Progress != nil {
		fmt.Fprintf(s.Progress, format, args...)
	}
}
