// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobParams carries the caller-supplied inputs for one generation job.
// Unlike every other pipeline record it is deliberately mutable: the quality
// gate and the regeneration orchestrator adjust it between attempts.
type JobParams struct {
	// Topic is the subject the article covers. Required.
	Topic string `json:"topic" yaml:"topic"`

	// Audience describes the intended readership (e.g. "platform engineers").
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty"`

	// Style is the requested writing style (e.g. "tutorial", "opinion").
	Style string `json:"style,omitempty" yaml:"style,omitempty"`

	// Keywords are terms the article should work in.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// TargetWords overrides the configured article length when positive.
	TargetWords int `json:"target_words,omitempty" yaml:"target_words,omitempty"`

	// QualityInstruction is injected by the scheduler's quality gate
	// between restarts (stricter on the first, relaxed on the second).
	QualityInstruction string `json:"quality_instruction,omitempty" yaml:"quality_instruction,omitempty"`

	// Variations accumulates instructions from the orchestrator's
	// variation strategies across regeneration attempts.
	Variations []string `json:"variations,omitempty" yaml:"variations,omitempty"`
}

// Clone returns a deep copy so one attempt's mutations never leak into the
// caller's params or a sibling job's.
func (p *JobParams) Clone() *JobParams {
	c := *p
	c.Keywords = append([]string(nil), p.Keywords...)
	c.Variations = append([]string(nil), p.Variations...)
	return &c
}

// SourceFile is one piece of reference material read by the fetch stage.
type SourceFile struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// SourceMaterial is the fetch stage's result slot. It is never cleared by a
// quality-gate restart.
type SourceMaterial struct {
	Files    []SourceFile `json:"files" yaml:"files"`
	Combined string       `json:"combined" yaml:"combined"`
}

// DraftSection is one heading-delimited chunk of a structured draft.
type DraftSection struct {
	Heading string `json:"heading" yaml:"heading"`
	Body    string `json:"body" yaml:"body"`
}

// StructuredDraft is the extract stage's result slot: the raw generation
// output split into titled sections.
type StructuredDraft struct {
	Title    string         `json:"title" yaml:"title"`
	Sections []DraftSection `json:"sections" yaml:"sections"`
}

// LinkCheck records the outcome of probing one outbound link.
type LinkCheck struct {
	URL        string `json:"url" yaml:"url"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	OK         bool   `json:"ok" yaml:"ok"`
}

// ImageSuggestion is the image stage's proposal for the article's lead image.
type ImageSuggestion struct {
	AltText string `json:"alt_text" yaml:"alt_text"`
	Prompt  string `json:"prompt" yaml:"prompt"`
}

// Enrichment is one concurrent stage's result. The populated field depends
// on which stage produced it; the merge stage switches on the field set
// rather than probing dynamically.
type Enrichment struct {
	// Stage is the producing stage's name, the slot key in the context's
	// concurrent-result mapping.
	Stage string `json:"stage" yaml:"stage"`

	// Citations lists citation keys harvested from the draft.
	Citations []string `json:"citations,omitempty" yaml:"citations,omitempty"`

	// Links holds outbound link probe results.
	Links []LinkCheck `json:"links,omitempty" yaml:"links,omitempty"`

	// Image is the lead-image suggestion.
	Image *ImageSuggestion `json:"image,omitempty" yaml:"image,omitempty"`
}

// MergedDraft is the merge stage's result slot: sections plus whatever
// enrichments succeeded, assembled into one candidate article body.
type MergedDraft struct {
	Title     string           `json:"title" yaml:"title"`
	Body      string           `json:"body" yaml:"body"`
	WordCount int              `json:"word_count" yaml:"word_count"`
	Citations []string         `json:"citations,omitempty" yaml:"citations,omitempty"`
	Links     []LinkCheck      `json:"links,omitempty" yaml:"links,omitempty"`
	Image     *ImageSuggestion `json:"image,omitempty" yaml:"image,omitempty"`
}

// QualityReport is the merge stage's verdict on the merged draft.
type QualityReport struct {
	// Accepted is true when the draft meets every acceptance threshold.
	Accepted bool `json:"accepted" yaml:"accepted"`

	// Degraded is set by the scheduler when the quality gate exhausted
	// its restarts without acceptance and the article was produced anyway.
	Degraded bool `json:"degraded" yaml:"degraded"`

	WordCount    int      `json:"word_count" yaml:"word_count"`
	SectionCount int      `json:"section_count" yaml:"section_count"`
	Issues       []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// Article is the finalize stage's result slot: the rendered, publishable
// output of one job.
type Article struct {
	Slug        string    `json:"slug" yaml:"slug"`
	Title       string    `json:"title" yaml:"title"`
	Topic       string    `json:"topic" yaml:"topic"`
	Body        string    `json:"body" yaml:"body"`
	WordCount   int       `json:"word_count" yaml:"word_count"`
	JobID       string    `json:"job_id" yaml:"job_id"`
	Degraded    bool      `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// ExportResult records where the finalize stage wrote the article.
type ExportResult struct {
	Path     string `json:"path" yaml:"path"`
	Archived bool   `json:"archived" yaml:"archived"`
}
