// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/archive"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect, export, or clear the session archive",
	Long: `Session manages the SQLite archive of approved articles and regeneration
reports written under the output directory. Use subcommands to list the
session's contents, export them to YAML or JSON, or clear the archive.`,
}

// --- list subcommand ---

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived articles and regeneration reports",
	RunE:  runSessionList,
}

func runSessionList(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	articles, err := store.ListArticles(ctx)
	if err != nil {
		return err
	}
	reports, err := store.ListReports(ctx)
	if err != nil {
		return err
	}

	if len(articles) == 0 && len(reports) == 0 {
		fmt.Println("Session archive is empty.")
		return nil
	}

	if len(articles) > 0 {
		fmt.Printf("%-30s  %-6s  %-9s  %s\n", "Slug", "Words", "Degraded", "Generated")
		for _, a := range articles {
			degraded := ""
			if a.Degraded {
				degraded = "yes"
			}
			fmt.Printf("%-30s  %-6d  %-9s  %s\n",
				a.Slug, a.WordCount, degraded, a.GeneratedAt.Format(time.RFC3339))
		}
	}

	if len(reports) > 0 {
		fmt.Printf("\n%-30s  %-18s  %-8s  %s\n", "Job", "Outcome", "Attempts", "Final")
		for _, r := range reports {
			fmt.Printf("%-30s  %-18s  %-8d  %s\n",
				r.JobID, r.Outcome, len(r.Attempts), r.FinalSlug)
		}
	}
	return nil
}

// --- export subcommand ---

var sessionExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session archive to YAML or JSON",
	RunE:  runSessionExport,
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	outputDir := sessionOutputDir(cmd)
	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background()); err != nil {
			return err
		}
		fmt.Println("Exported to", filepath.Join(outputDir, "index", "export.yaml"))
	case "json":
		if err := store.ExportJSON(context.Background()); err != nil {
			return err
		}
		fmt.Println("Exported to", filepath.Join(outputDir, "index", "export.json"))
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}

// --- clear subcommand ---

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all archived articles and reports",
	Long: `Clear deletes every article and report from the session archive. Article
files already written under the output directory are left in place.`,
	RunE: runSessionClear,
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ClearSession(context.Background()); err != nil {
		return err
	}
	fmt.Println("Session archive cleared.")
	return nil
}

// --- shared helpers ---

func sessionOutputDir(cmd *cobra.Command) string {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = viper.GetString("generation.output_dir")
	}
	if outputDir == "" {
		outputDir = "output/drafts"
	}
	return outputDir
}

func openSessionStore(cmd *cobra.Command) (*archive.Store, error) {
	dir := sessionOutputDir(cmd)
	if _, err := os.Stat(filepath.Join(dir, "index")); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no session archive under %s: run generate or batch first", dir)
		}
		return nil, err
	}
	return archive.NewStore(dir)
}

func init() {
	sessionCmd.PersistentFlags().String("output-dir", "", "output directory holding the session archive")

	sessionExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	sessionCmd.AddCommand(sessionClearCmd)

	rootCmd.AddCommand(sessionCmd)
}
