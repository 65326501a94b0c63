// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists approved articles and regeneration reports for a
// batch session to SQLite. The pipeline core keeps no durable state; the
// archive is the export surface the session CLI reads from.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/content-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "sessions.db"
)

// Store manages the session archive SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the archive database at outputDir/index/sessions.db,
// creating the schema if it does not exist.
func NewStore(outputDir string) (*Store, error) {
	dbDir := filepath.Join(outputDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: outputDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			slug TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			topic TEXT,
			body TEXT NOT NULL,
			word_count INTEGER,
			job_id TEXT,
			degraded INTEGER NOT NULL DEFAULT 0,
			generated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			topic TEXT,
			outcome TEXT NOT NULL,
			final_slug TEXT,
			attempts TEXT NOT NULL,
			recorded_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_job_id ON reports(job_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveArticle inserts or replaces an approved article.
func (s *Store) SaveArticle(ctx context.Context, a *types.Article) error {
	degraded := 0
	if a.Degraded {
		degraded = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO articles
			(slug, title, topic, body, word_count, job_id, degraded, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Slug, a.Title, a.Topic, a.Body, a.WordCount, a.JobID, degraded,
		a.GeneratedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving article %s: %w", a.Slug, err)
	}
	return nil
}

// SaveReport appends a regeneration report. Attempts are stored as JSON.
func (s *Store) SaveReport(ctx context.Context, r *types.ReportRecord) error {
	attempts, err := json.Marshal(r.Attempts)
	if err != nil {
		return fmt.Errorf("marshaling attempts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (job_id, topic, outcome, final_slug, attempts, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.JobID, r.Topic, string(r.Outcome), r.FinalSlug, string(attempts),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving report for %s: %w", r.JobID, err)
	}
	return nil
}

// ListArticles returns every archived article ordered by generation time.
func (s *Store) ListArticles(ctx context.Context) ([]types.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, title, topic, body, word_count, job_id, degraded, generated_at
		 FROM articles ORDER BY generated_at, slug`)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var out []types.Article
	for rows.Next() {
		var a types.Article
		var degraded int
		var generatedAt string
		if err := rows.Scan(&a.Slug, &a.Title, &a.Topic, &a.Body, &a.WordCount,
			&a.JobID, &degraded, &generatedAt); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		a.Degraded = degraded != 0
		if t, err := time.Parse(time.RFC3339, generatedAt); err == nil {
			a.GeneratedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListReports returns every archived regeneration report in insertion order.
func (s *Store) ListReports(ctx context.Context) ([]types.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, topic, outcome, final_slug, attempts FROM reports ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []types.ReportRecord
	for rows.Next() {
		var r types.ReportRecord
		var outcome, attempts string
		if err := rows.Scan(&r.JobID, &r.Topic, &outcome, &r.FinalSlug, &attempts); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r.Outcome = types.RegenOutcome(outcome)
		if err := json.Unmarshal([]byte(attempts), &r.Attempts); err != nil {
			return nil, fmt.Errorf("parsing attempts for %s: %w", r.JobID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearSession deletes all archived articles and reports.
func (s *Store) ClearSession(ctx context.Context) error {
	for _, table := range []string{"articles", "reports"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}
