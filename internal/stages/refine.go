// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/genai"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// fillerPhrases are generation tics that mark a draft as needing a
// refinement pass.
var fillerPhrases = []string{
	"in today's fast-paced world",
	"in conclusion, it is clear",
	"as we have seen",
	"it goes without saying",
	"delve into",
}

// NeedsRefinement is the conditional-phase predicate: true when the draft
// is thin or leans on filler.
func NeedsRefinement(minWords int) func(ec *pipeline.Context) bool {
	return func(ec *pipeline.Context) bool {
		if ec.Structured == nil {
			return false
		}
		if countWords(draftText(ec)) < minWords {
			return true
		}
		lower := strings.ToLower(ec.RawDraft)
		for _, phrase := range fillerPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
		return false
	}
}

// RefineStage rewrites the weakest section of the structured draft. Its
// failure never aborts the pipeline; the draft from before the pass is
// simply kept.
type RefineStage struct {
	Client genai.Client
}

func (s *RefineStage) Ordinal() int { return 4 }
func (s *RefineStage) Name() string { return NameRefine }

func (s *RefineStage) Run(ctx context.Context, ec *pipeline.Context) error {
	if ec.Structured == nil || len(ec.Structured.Sections) == 0 {
		return fmt.Errorf("no structured draft to refine")
	}

	idx := weakestSection(ec.Structured.Sections)
	sec := ec.Structured.Sections[idx]

	prompt := fmt.Sprintf(
		"Rewrite this article section to be more substantive and concrete. Keep the heading's subject, avoid filler.\n\n## %s\n\n%s",
		sec.Heading, sec.Body,
	)
	revised, err := s.Client.Generate(ctx, prompt, genai.GenerateOptions{})
	if err != nil {
		return fmt.Errorf("refining section %q: %w", sec.Heading, err)
	}
	if strings.TrimSpace(revised) == "" {
		return fmt.Errorf("refinement returned an empty section")
	}

	ec.Structured.Sections[idx].Body = strings.TrimSpace(revised)
	return nil
}

// weakestSection picks the shortest section body.
func weakestSection(sections []types.DraftSection) int {
	idx := 0
	shortest := -1
	for i, sec := range sections {
		n := countWords(sec.Body)
		if shortest < 0 || n < shortest {
			shortest = n
			idx = i
		}
	}
	return idx
}
