// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ExtractStage splits the raw draft into a titled, heading-delimited
// structure. Registered non-critical: when it fails, the merge stage falls
// back to the raw draft as a single section.
type ExtractStage struct{}

func (s *ExtractStage) Ordinal() int { return 3 }
func (s *ExtractStage) Name() string { return NameExtract }

func (s *ExtractStage) Run(_ context.Context, ec *pipeline.Context) error {
	if strings.TrimSpace(ec.RawDraft) == "" {
		return fmt.Errorf("no raw draft in context")
	}

	title, sections := chunkByHeadings(ec.RawDraft)
	if title == "" {
		title = ec.Params.Topic
	}
	if len(sections) == 0 {
		return fmt.Errorf("draft has no content under its headings")
	}

	ec.Structured = &types.StructuredDraft{Title: title, Sections: sections}
	return nil
}

// chunkByHeadings splits Markdown into sections on ## and ### boundaries.
// A leading # line becomes the title; preamble before the first section
// heading is kept as an untitled section.
func chunkByHeadings(content string) (string, []types.DraftSection) {
	var title string
	var sections []types.DraftSection
	currentHeading := ""
	var bodyLines []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
		if currentHeading != "" || body != "" {
			sections = append(sections, types.DraftSection{
				Heading: currentHeading,
				Body:    body,
			})
		}
		bodyLines = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if title == "" && strings.HasPrefix(trimmed, "# ") && !strings.HasPrefix(trimmed, "## ") {
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			continue
		}

		if isHeading(trimmed) {
			flush()
			currentHeading = stripHeadingPrefix(trimmed)
			continue
		}

		bodyLines = append(bodyLines, line)
	}

	flush()
	return title, sections
}

// isHeading returns true if the line starts with ## or ###.
func isHeading(line string) bool {
	return strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

// stripHeadingPrefix removes the leading # characters and whitespace.
func stripHeadingPrefix(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}
