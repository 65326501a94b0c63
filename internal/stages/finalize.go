// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/slug"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Archiver records approved output. The session archive implements it;
// tests supply a stub.
type Archiver interface {
	SaveArticle(ctx context.Context, a *types.Article) error
}

// frontmatter is the YAML header rendered at the top of each article file.
type frontmatter struct {
	Title       string   `yaml:"title"`
	Topic       string   `yaml:"topic"`
	Slug        string   `yaml:"slug"`
	JobID       string   `yaml:"job_id"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Citations   []string `yaml:"citations,omitempty"`
	ImageAlt    string   `yaml:"image_alt,omitempty"`
	ImagePrompt string   `yaml:"image_prompt,omitempty"`
	Degraded    bool     `yaml:"degraded,omitempty"`
	GeneratedAt string   `yaml:"generated_at"`
}

// FinalizeStage renders the merged draft to Markdown with YAML frontmatter,
// writes it under OutputDir, and records it in the archive when one is
// wired. It fills both the final-result and export-result slots.
type FinalizeStage struct {
	OutputDir string
	Archive   Archiver // optional
}

func (s *FinalizeStage) Ordinal() int { return 9 }
func (s *FinalizeStage) Name() string { return NameFinalize }

func (s *FinalizeStage) Run(ctx context.Context, ec *pipeline.Context) error {
	if ec.Merged == nil {
		return fmt.Errorf("no merged draft in context")
	}

	article := &types.Article{
		Slug:        slug.Make(ec.Merged.Title),
		Title:       ec.Merged.Title,
		Topic:       ec.Params.Topic,
		Body:        ec.Merged.Body,
		WordCount:   ec.Merged.WordCount,
		JobID:       ec.JobID,
		Degraded:    ec.QualityDegraded,
		GeneratedAt: time.Now().UTC(),
	}

	rendered, err := render(article, ec.Merged, ec.Params.Keywords)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(s.OutputDir, article.Slug+".md")
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("writing article %s: %w", path, err)
	}

	export := &types.ExportResult{Path: path}
	if s.Archive != nil {
		if err := s.Archive.SaveArticle(ctx, article); err != nil {
			// Archival failure is logged, not fatal: the article
			// file on disk is the output of record.
			ec.RecordError(NameFinalize+"/archive", err)
		} else {
			export.Archived = true
		}
	}

	ec.Final = article
	ec.Export = export
	return nil
}

// render produces the article file: frontmatter between --- fences, then
// the title and body.
func render(a *types.Article, merged *types.MergedDraft, keywords []string) (string, error) {
	fm := frontmatter{
		Title:       a.Title,
		Topic:       a.Topic,
		Slug:        a.Slug,
		JobID:       a.JobID,
		Keywords:    keywords,
		Citations:   merged.Citations,
		Degraded:    a.Degraded,
		GeneratedAt: a.GeneratedAt.Format(time.RFC3339),
	}
	if merged.Image != nil {
		fm.ImageAlt = merged.Image.AltText
		fm.ImagePrompt = merged.Image.Prompt
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString(a.Body)
	b.WriteString("\n")
	return b.String(), nil
}
