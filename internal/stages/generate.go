// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/genai"
	"github.com/pdiddy/content-engine/internal/pipeline"
)

// GenerateStage calls the generative client with the base prompt plus any
// instructions injected into the params since the prompt was built. It is
// the stage a quality-gate restart resumes from.
type GenerateStage struct {
	Client genai.Client
	Opts   genai.GenerateOptions
}

func (s *GenerateStage) Ordinal() int { return 2 }
func (s *GenerateStage) Name() string { return NameGenerate }

func (s *GenerateStage) Run(ctx context.Context, ec *pipeline.Context) error {
	if ec.Prompt == "" {
		return fmt.Errorf("no prompt in context")
	}

	prompt := composePrompt(ec)
	draft, err := s.Client.Generate(ctx, prompt, s.Opts)
	if err != nil {
		return fmt.Errorf("calling generative API: %w", err)
	}
	if strings.TrimSpace(draft) == "" {
		return fmt.Errorf("generative API returned an empty draft")
	}

	ec.RawDraft = draft
	return nil
}

// composePrompt appends the quality-gate and variation instructions to the
// base prompt. Instruction text lives in params so restarts pick up the
// latest adjustment without rebuilding the prompt slot.
func composePrompt(ec *pipeline.Context) string {
	var b strings.Builder
	b.WriteString(ec.Prompt)
	if ec.Params.QualityInstruction != "" {
		b.WriteString("\n")
		b.WriteString(ec.Params.QualityInstruction)
		b.WriteString("\n")
	}
	for _, v := range ec.Params.Variations {
		b.WriteString("\n")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return b.String()
}
