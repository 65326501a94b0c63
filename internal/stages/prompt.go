// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/pipeline"
)

// PromptStage composes the base generation prompt from the job params and
// fetched source material. Gate and variation instructions are deliberately
// left out: they reach the generate stage through the params, so a
// quality-gate restart does not need to rebuild this slot.
type PromptStage struct {
	TargetWords int
}

func (s *PromptStage) Ordinal() int { return 1 }
func (s *PromptStage) Name() string { return NamePrompt }

func (s *PromptStage) Run(_ context.Context, ec *pipeline.Context) error {
	p := ec.Params
	if p == nil || strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("job params carry no topic")
	}

	target := s.TargetWords
	if p.TargetWords > 0 {
		target = p.TargetWords
	}
	if target <= 0 {
		target = 800
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a Markdown article about %s.\n", p.Topic)
	fmt.Fprintf(&b, "Start with a single # title line, then use ## section headings.\n")
	fmt.Fprintf(&b, "Target length: about %d words.\n", target)
	if p.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s.\n", p.Audience)
	}
	if p.Style != "" {
		fmt.Fprintf(&b, "Style: %s.\n", p.Style)
	}
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "Work in these terms: %s.\n", strings.Join(p.Keywords, ", "))
	}
	if ec.Source != nil && ec.Source.Combined != "" {
		fmt.Fprintf(&b, "\nGround the article in this source material:\n\n%s\n", ec.Source.Combined)
	}

	ec.Prompt = b.String()
	return nil
}
