// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/pkg/types"
)

// sessionExport is the full session written by the export commands.
type sessionExport struct {
	Articles []types.Article      `json:"articles" yaml:"articles"`
	Reports  []types.ReportRecord `json:"reports" yaml:"reports"`
}

// ExportYAML writes the session's articles and reports to
// outputDir/index/export.yaml.
func (s *Store) ExportYAML(ctx context.Context) error {
	export, err := s.export(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.dir, indexDir, "export.yaml")
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the session's articles and reports to
// outputDir/index/export.json.
func (s *Store) ExportJSON(ctx context.Context) error {
	export, err := s.export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.dir, indexDir, "export.json")
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) export(ctx context.Context) (*sessionExport, error) {
	articles, err := s.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing articles for export: %w", err)
	}
	reports, err := s.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reports for export: %w", err)
	}
	return &sessionExport{Articles: articles, Reports: reports}, nil
}
