// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// MergeStage assembles the structured draft and whatever enrichments
// succeeded into one candidate article, then judges it against the quality
// thresholds. It must not depend on concurrent-stage completion order, only
// on which named slots are present.
type MergeStage struct {
	Config types.QualityConfig
}

func (s *MergeStage) Ordinal() int { return 8 }
func (s *MergeStage) Name() string { return NameMerge }

func (s *MergeStage) Run(_ context.Context, ec *pipeline.Context) error {
	if strings.TrimSpace(ec.RawDraft) == "" && ec.Structured == nil {
		return fmt.Errorf("nothing to merge: no draft in context")
	}

	merged := &types.MergedDraft{}

	// Extraction is non-critical; fall back to the raw draft as one
	// untitled section when it failed.
	if ec.Structured != nil {
		merged.Title = ec.Structured.Title
		merged.Body = renderSections(ec.Structured.Sections)
	} else {
		merged.Title = ec.Params.Topic
		merged.Body = strings.TrimSpace(ec.RawDraft)
	}
	merged.WordCount = countWords(merged.Body)

	// Fold in the concurrent slots that made it. Absent slots simply
	// contribute nothing.
	if e, ok := ec.Concurrent[NameCitations]; ok {
		merged.Citations = e.Citations
	}
	if e, ok := ec.Concurrent[NameLinks]; ok {
		merged.Links = e.Links
	}
	if e, ok := ec.Concurrent[NameImage]; ok {
		merged.Image = e.Image
	}

	ec.Merged = merged
	ec.Quality = s.judge(ec, merged)
	return nil
}

// judge builds the quality report for the merged draft.
func (s *MergeStage) judge(ec *pipeline.Context, merged *types.MergedDraft) *types.QualityReport {
	report := &types.QualityReport{
		WordCount: merged.WordCount,
	}
	if ec.Structured != nil {
		report.SectionCount = len(ec.Structured.Sections)
	} else {
		report.SectionCount = 1
	}

	minWords := s.Config.MinWords
	if minWords <= 0 {
		minWords = 300
	}
	minSections := s.Config.MinSections
	if minSections <= 0 {
		minSections = 2
	}

	if report.WordCount < minWords {
		report.Issues = append(report.Issues,
			fmt.Sprintf("draft has %d words, need at least %d", report.WordCount, minWords))
	}
	if report.SectionCount < minSections {
		report.Issues = append(report.Issues,
			fmt.Sprintf("draft has %d sections, need at least %d", report.SectionCount, minSections))
	}
	for _, kw := range ec.Params.Keywords {
		if !strings.Contains(strings.ToLower(merged.Body), strings.ToLower(kw)) {
			report.Issues = append(report.Issues, fmt.Sprintf("keyword %q missing from draft", kw))
		}
	}

	report.Accepted = len(report.Issues) == 0
	return report
}

// renderSections joins sections back into a Markdown body.
func renderSections(sections []types.DraftSection) string {
	var b strings.Builder
	for _, sec := range sections {
		if sec.Heading != "" {
			fmt.Fprintf(&b, "## %s\n\n", sec.Heading)
		}
		if sec.Body != "" {
			b.WriteString(sec.Body)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// countWords counts whitespace-separated tokens.
func countWords(text string) int {
	return len(strings.Fields(text))
}
