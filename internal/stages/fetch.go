// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stages contains the concrete pipeline stages: source fetching,
// prompt construction, generation, structure extraction, refinement, the
// concurrent enrichments, merge, and finalize.
package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Stage names double as slot keys in the context's logs.
const (
	NameFetch     = "fetch"
	NamePrompt    = "prompt"
	NameGenerate  = "generate"
	NameExtract   = "extract"
	NameRefine    = "refine"
	NameCitations = "citations"
	NameLinks     = "links"
	NameImage     = "image"
	NameMerge     = "merge"
	NameFinalize  = "finalize"
)

// FetchStage loads source material for the job's topic from a notes
// directory. A missing directory yields empty source material rather than
// an error; generation can proceed from the topic alone.
type FetchStage struct {
	NotesDir string
}

func (s *FetchStage) Ordinal() int { return 0 }
func (s *FetchStage) Name() string { return NameFetch }

func (s *FetchStage) Run(_ context.Context, ec *pipeline.Context) error {
	source := &types.SourceMaterial{}

	entries, err := os.ReadDir(s.NotesDir)
	if err != nil {
		if os.IsNotExist(err) {
			ec.Source = source
			return nil
		}
		return fmt.Errorf("reading notes directory %s: %w", s.NotesDir, err)
	}

	var combined strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".md") && !strings.HasSuffix(name, ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.NotesDir, name))
		if err != nil {
			return fmt.Errorf("reading note %s: %w", name, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		source.Files = append(source.Files, types.SourceFile{Name: name, Content: content})
		combined.WriteString(content)
		combined.WriteString("\n\n")
	}
	source.Combined = strings.TrimSpace(combined.String())

	ec.Source = source
	return nil
}
