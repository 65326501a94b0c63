// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/content-engine/pkg/types"
)

// recorder tracks stage execution order across goroutines.
type recorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, name)
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, run := range r.runs {
		if run == name {
			n++
		}
	}
	return n
}

func (r *recorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

func stage(ord int, name string, rec *recorder, fn func(ec *Context) error) Stage {
	return StageFunc{Ord: ord, Lbl: name, Fn: func(_ context.Context, ec *Context) error {
		if rec != nil {
			rec.record(name)
		}
		if fn != nil {
			return fn(ec)
		}
		return nil
	}}
}

// testScheduler builds a full pipeline shape with hooks. rejections is the
// number of times the merge stage rejects before accepting.
func testScheduler(rec *recorder, rejections *int32) *Scheduler {
	return &Scheduler{
		Name: "test",
		Sequential: []SequentialStage{
			{Stage: stage(0, "fetch", rec, func(ec *Context) error {
				ec.Source = &types.SourceMaterial{Combined: "source notes"}
				return nil
			}), Critical: true},
			{Stage: stage(1, "prompt", rec, func(ec *Context) error {
				ec.Prompt = "base prompt"
				return nil
			}), Critical: true},
			{Stage: stage(2, "generate", rec, func(ec *Context) error {
				ec.RawDraft = "draft " + ec.Params.QualityInstruction
				return nil
			}), Critical: true},
			{Stage: stage(3, "extract", rec, func(ec *Context) error {
				ec.Structured = &types.StructuredDraft{
					Title:    "Title",
					Sections: []types.DraftSection{{Heading: "One", Body: ec.RawDraft}},
				}
				return nil
			}), Critical: false},
		},
		Concurrent: []Stage{
			stage(5, "citations", rec, func(ec *Context) error {
				ec.SetEnrichment("citations", types.Enrichment{Stage: "citations", Citations: []string{"Smith2020"}})
				return nil
			}),
			stage(6, "links", rec, func(ec *Context) error {
				ec.SetEnrichment("links", types.Enrichment{Stage: "links", Links: []types.LinkCheck{{URL: "https://example.com", StatusCode: 200, OK: true}}})
				return nil
			}),
			stage(7, "image", rec, func(ec *Context) error {
				ec.SetEnrichment("image", types.Enrichment{Stage: "image", Image: &types.ImageSuggestion{AltText: "alt"}})
				return nil
			}),
		},
		Merge: stage(8, "merge", rec, func(ec *Context) error {
			ec.Merged = &types.MergedDraft{Title: "Title", Body: ec.RawDraft, WordCount: 500}
			report := &types.QualityReport{WordCount: 500, SectionCount: 1}
			if rejections != nil && atomic.AddInt32(rejections, -1) >= 0 {
				report.Issues = []string{"too thin"}
			} else {
				report.Accepted = true
			}
			ec.Quality = report
			return nil
		}),
		Final: stage(9, "finalize", rec, func(ec *Context) error {
			ec.Final = &types.Article{Title: "Title", Body: ec.RawDraft, JobID: ec.JobID}
			ec.Export = &types.ExportResult{Path: "/tmp/title.md"}
			return nil
		}),
		RestartFrom: "generate",
	}
}

func TestExecuteHappyPath(t *testing.T) {
	rec := &recorder{}
	s := testScheduler(rec, nil)

	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "go testing"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if ec.GateAttempts != 0 {
		t.Errorf("GateAttempts = %d, want 0", ec.GateAttempts)
	}
	if ec.QualityDegraded {
		t.Error("QualityDegraded should be false")
	}

	// All result slots populated.
	if ec.Source == nil || ec.Prompt == "" || ec.RawDraft == "" || ec.Structured == nil {
		t.Error("sequential-phase slots not populated")
	}
	if len(ec.Concurrent) != 3 {
		t.Errorf("concurrent slots = %d, want 3", len(ec.Concurrent))
	}
	if ec.Merged == nil || ec.Quality == nil || ec.Final == nil || ec.Export == nil {
		t.Error("finalize-phase slots not populated")
	}
	if !ec.Quality.Accepted {
		t.Error("quality report should be accepted")
	}

	// Sequential stages ran in registration order, before the rest.
	seq := rec.sequence()
	want := []string{"fetch", "prompt", "generate", "extract"}
	for i, name := range want {
		if seq[i] != name {
			t.Errorf("run %d = %q, want %q", i, seq[i], name)
		}
	}
	if seq[len(seq)-1] != "finalize" {
		t.Errorf("last run = %q, want finalize", seq[len(seq)-1])
	}
}

func TestExecuteGeneratesJobID(t *testing.T) {
	s := testScheduler(&recorder{}, nil)
	ec, err := s.Execute(context.Background(), "", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ec.JobID == "" {
		t.Error("empty jobID should be replaced with a generated one")
	}
}

func TestCriticalFailureAbortsBeforeFinal(t *testing.T) {
	rec := &recorder{}
	s := testScheduler(rec, nil)
	boom := errors.New("model unavailable")
	s.Sequential[2] = SequentialStage{
		Stage:    stage(2, "generate", rec, func(*Context) error { return boom }),
		Critical: true,
	}

	_, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err == nil {
		t.Fatal("expected error from critical stage failure")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v should wrap the stage error", err)
	}
	if rec.count("finalize") != 0 {
		t.Error("final stage must never run after a critical failure")
	}
	if rec.count("merge") != 0 {
		t.Error("merge must not run after a critical sequential failure")
	}
}

func TestNonCriticalFailureContinues(t *testing.T) {
	rec := &recorder{}
	s := testScheduler(rec, nil)
	s.Sequential[3] = SequentialStage{
		Stage:    stage(3, "extract", rec, func(*Context) error { return errors.New("malformed draft") }),
		Critical: false,
	}

	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ec.Final == nil {
		t.Error("pipeline should complete despite non-critical failure")
	}
	if msg, ok := ec.ErrorFor("extract"); !ok || !strings.Contains(msg, "malformed draft") {
		t.Errorf("extract failure not recorded: %q", msg)
	}
	if ec.Structured != nil {
		t.Error("failed stage must not have written its slot")
	}
}

func TestConditionalFailureDoesNotAbort(t *testing.T) {
	rec := &recorder{}
	s := testScheduler(rec, nil)
	s.Conditional = &ConditionalStage{
		Stage: stage(4, "refine", rec, func(*Context) error { return errors.New("refinement failed") }),
		When:  func(*Context) bool { return true },
	}

	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.count("refine") != 1 {
		t.Errorf("refine ran %d times, want 1", rec.count("refine"))
	}
	if _, ok := ec.ErrorFor("refine"); !ok {
		t.Error("conditional failure should be recorded")
	}
	if ec.Final == nil {
		t.Error("pipeline should complete despite conditional failure")
	}
}

func TestConditionalSkippedWhenPredicateFalse(t *testing.T) {
	rec := &recorder{}
	s := testScheduler(rec, nil)
	s.Conditional = &ConditionalStage{
		Stage: stage(4, "refine", rec, nil),
		When:  func(*Context) bool { return false },
	}

	if _, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.count("refine") != 0 {
		t.Error("conditional stage must not run when its predicate is false")
	}
}

func TestConcurrentFailureIsIsolated(t *testing.T) {
	rec := &recorder{}
	s := testScheduler(rec, nil)
	s.Concurrent[1] = stage(6, "links", rec, func(*Context) error {
		return errors.New("network down")
	})

	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := ec.Concurrent["links"]; ok {
		t.Error("failed unit must contribute nothing")
	}
	if _, ok := ec.Concurrent["citations"]; !ok {
		t.Error("sibling units must be unaffected by one unit's failure")
	}
	if _, ok := ec.Concurrent["image"]; !ok {
		t.Error("sibling units must be unaffected by one unit's failure")
	}
	if msg, ok := ec.ErrorFor("links"); !ok || !strings.Contains(msg, "network down") {
		t.Errorf("unit failure not recorded: %q", msg)
	}
	if ec.Final == nil {
		t.Error("pipeline must not abort for a concurrent-phase failure")
	}
}

// TestConcurrentMergeOrderIndependent permutes artificial unit delays and
// checks the merged view of the concurrent slots is identical every run.
func TestConcurrentMergeOrderIndependent(t *testing.T) {
	delayPermutations := [][]time.Duration{
		{0, 5 * time.Millisecond, 10 * time.Millisecond},
		{10 * time.Millisecond, 0, 5 * time.Millisecond},
		{5 * time.Millisecond, 10 * time.Millisecond, 0},
	}

	var baseline string
	for i, delays := range delayPermutations {
		s := testScheduler(&recorder{}, nil)
		names := []string{"citations", "links", "image"}
		for j := range s.Concurrent {
			name := names[j]
			delay := delays[j]
			s.Concurrent[j] = stage(5+j, name, nil, func(ec *Context) error {
				time.Sleep(delay)
				ec.SetEnrichment(name, types.Enrichment{Stage: name, Citations: []string{name + "-result"}})
				return nil
			})
		}

		ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
		if err != nil {
			t.Fatalf("permutation %d: %v", i, err)
		}

		// Canonical view: fixed key order, independent of completion order.
		var view strings.Builder
		for _, name := range names {
			e := ec.Concurrent[name]
			fmt.Fprintf(&view, "%s=%v;", name, e.Citations)
		}
		if i == 0 {
			baseline = view.String()
		} else if view.String() != baseline {
			t.Errorf("permutation %d produced %q, want %q", i, view.String(), baseline)
		}
	}
}

// TestQualityGateRetriesThenAccepts is the two-rejections-then-pass path:
// the counter lands on 2 and the relaxed instruction from the second
// restart is in force, not the strict one from the first.
func TestQualityGateRetriesThenAccepts(t *testing.T) {
	rec := &recorder{}
	rejections := int32(2)
	s := testScheduler(rec, &rejections)

	params := &types.JobParams{Topic: "t"}
	ec, err := s.Execute(context.Background(), "job-1", params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if ec.GateAttempts != 2 {
		t.Errorf("GateAttempts = %d, want 2", ec.GateAttempts)
	}
	if ec.Params.QualityInstruction != relaxedInstruction {
		t.Errorf("QualityInstruction = %q, want the relaxed instruction", ec.Params.QualityInstruction)
	}
	if ec.QualityDegraded {
		t.Error("QualityDegraded should be false after eventual acceptance")
	}
	if got := rec.count("generate"); got != 3 {
		t.Errorf("generate ran %d times, want 3", got)
	}
	// Restart resumes from the generation stage: fetch and prompt run once.
	if got := rec.count("fetch"); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}
	if got := rec.count("prompt"); got != 1 {
		t.Errorf("prompt ran %d times, want 1", got)
	}
	if got := rec.count("finalize"); got != 1 {
		t.Errorf("finalize ran %d times, want 1", got)
	}
}

func TestQualityGateNeverClearsFetchResults(t *testing.T) {
	rec := &recorder{}
	rejections := int32(1)
	s := testScheduler(rec, &rejections)

	var fetched *types.SourceMaterial
	s.Sequential[0] = SequentialStage{
		Stage: stage(0, "fetch", rec, func(ec *Context) error {
			fetched = &types.SourceMaterial{Combined: "source notes"}
			ec.Source = fetched
			return nil
		}),
		Critical: true,
	}

	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ec.Source != fetched {
		t.Error("fetch results must survive quality-gate restarts")
	}
	if ec.Prompt == "" {
		t.Error("base prompt must survive quality-gate restarts")
	}
}

// TestQualityGateExhaustion: rejection on every attempt produces a degraded
// context, a finished final stage, and no error.
func TestQualityGateExhaustion(t *testing.T) {
	rec := &recorder{}
	rejections := int32(100) // never accept
	s := testScheduler(rec, &rejections)

	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("exhaustion must not surface as an error, got %v", err)
	}

	if ec.GateAttempts != 3 {
		t.Errorf("GateAttempts = %d, want exactly 3", ec.GateAttempts)
	}
	if !ec.QualityDegraded {
		t.Error("QualityDegraded must be set after exhaustion")
	}
	if ec.Quality == nil || !ec.Quality.Degraded || ec.Quality.Accepted {
		t.Errorf("quality report should reflect failure: %+v", ec.Quality)
	}
	if rec.count("finalize") != 1 {
		t.Error("final stage still runs after gate exhaustion")
	}
	// Initial run plus exactly 3 restarts.
	if got := rec.count("generate"); got != 4 {
		t.Errorf("generate ran %d times, want 4", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scheduler)
		errMsg string
	}{
		{
			name:   "no sequential stages",
			mutate: func(s *Scheduler) { s.Sequential = nil },
			errMsg: "no sequential stages",
		},
		{
			name:   "no merge stage",
			mutate: func(s *Scheduler) { s.Merge = nil },
			errMsg: "no merge stage",
		},
		{
			name:   "no final stage",
			mutate: func(s *Scheduler) { s.Final = nil },
			errMsg: "no final stage",
		},
		{
			name:   "unknown restart stage",
			mutate: func(s *Scheduler) { s.RestartFrom = "does-not-exist" },
			errMsg: "not a sequential stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScheduler(&recorder{}, nil)
			tt.mutate(s)
			_, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want mention of %q", err, tt.errMsg)
			}
		})
	}
}

func TestTimingsRecorded(t *testing.T) {
	s := testScheduler(&recorder{}, nil)
	ec, err := s.Execute(context.Background(), "job-1", &types.JobParams{Topic: "t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, name := range []string{"fetch", "prompt", "generate", "extract", "citations", "links", "image", "merge", "finalize"} {
		if _, ok := ec.Timings[name]; !ok {
			t.Errorf("no timing recorded for stage %q", name)
		}
	}
}
