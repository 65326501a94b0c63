// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RegenOutcome is the terminal state of one job in the regeneration
// orchestrator.
type RegenOutcome string

const (
	// OutcomeApproved means an attempt passed the similarity check and
	// was registered in batch memory.
	OutcomeApproved RegenOutcome = "approved"

	// OutcomeRejected means the last attempt was too similar and either
	// regeneration is disabled or attempts ran out.
	OutcomeRejected RegenOutcome = "rejected"

	// OutcomeExhausted means every attempt failed with a pipeline error
	// before a similarity verdict could be reached.
	OutcomeExhausted RegenOutcome = "attempts-exhausted"
)

// AttemptRecord describes one full pipeline run inside a regeneration loop.
type AttemptRecord struct {
	// Number is the 1-based attempt index.
	Number int `json:"number" yaml:"number"`

	// Strategy is the variation strategy applied before this attempt.
	// Empty on the first attempt.
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Score is the similarity score the attempt achieved, when a verdict
	// was reached.
	Score float64 `json:"score" yaml:"score"`

	// Success is true when the attempt was approved.
	Success bool `json:"success" yaml:"success"`

	// Duration is the attempt's wall-clock time.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Error records a pipeline failure, empty otherwise.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReportRecord is the serializable core of a regeneration report, shared
// with the session archive.
type ReportRecord struct {
	// JobID is the job's base identifier, before attempt suffixing.
	JobID string `json:"job_id" yaml:"job_id"`

	// Topic is the job's subject.
	Topic string `json:"topic" yaml:"topic"`

	// Attempts lists every pipeline run in order.
	Attempts []AttemptRecord `json:"attempts" yaml:"attempts"`

	// Outcome is the job's terminal state.
	Outcome RegenOutcome `json:"outcome" yaml:"outcome"`

	// FinalSlug identifies the approved article in batch memory and the
	// archive. Empty unless Outcome is approved.
	FinalSlug string `json:"final_slug,omitempty" yaml:"final_slug,omitempty"`
}

// BatchSummary holds aggregate counts across one orchestrator session.
type BatchSummary struct {
	// Approved counts jobs that ended approved.
	Approved int `json:"approved" yaml:"approved"`

	// Rejected counts jobs that ended rejected or attempts-exhausted.
	Rejected int `json:"rejected" yaml:"rejected"`

	// Regenerated counts approved jobs that needed more than one attempt.
	Regenerated int `json:"regenerated" yaml:"regenerated"`
}

// Total returns the number of jobs processed.
func (s BatchSummary) Total() int {
	return s.Approved + s.Rejected
}
