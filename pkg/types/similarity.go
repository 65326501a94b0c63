// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AnalysisMode reports which similarity signals produced a result.
type AnalysisMode string

const (
	// ModeNone means batch memory was empty and nothing was compared.
	ModeNone AnalysisMode = "none"

	// ModeLexicalOnly means no embedding comparator was configured and
	// only the shingle signal was used.
	ModeLexicalOnly AnalysisMode = "lexical-only"

	// ModeHybrid means both lexical and semantic signals contributed.
	ModeHybrid AnalysisMode = "hybrid"

	// ModeError means the embedding comparator failed; the result is a
	// fail-open "not too similar" with the failure recorded in Issues.
	ModeError AnalysisMode = "error"
)

// SimilarityResult is the similarity engine's verdict on one candidate
// article against batch memory.
type SimilarityResult struct {
	// Score is the combined similarity against the best-matching accepted
	// article, on a 0-100 scale.
	Score float64 `json:"score" yaml:"score"`

	// LexicalScore and SemanticScore are the individual signals behind
	// Score, when computed.
	LexicalScore  float64 `json:"lexical_score" yaml:"lexical_score"`
	SemanticScore float64 `json:"semantic_score" yaml:"semantic_score"`

	// TooSimilar is true when Score exceeds the configured threshold.
	TooSimilar bool `json:"too_similar" yaml:"too_similar"`

	// MatchedID identifies the accepted article the candidate most
	// resembles. Empty when memory is empty.
	MatchedID string `json:"matched_id,omitempty" yaml:"matched_id,omitempty"`

	// RegenerationNeeded is true only when TooSimilar is true and the
	// engine is configured to allow regeneration.
	RegenerationNeeded bool `json:"regeneration_needed" yaml:"regeneration_needed"`

	// Mode reports which signals were available for this check.
	Mode AnalysisMode `json:"mode" yaml:"mode"`

	// Issues records non-fatal problems, such as a comparator failure.
	Issues []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}
