// Package archive keeps an optional SQLite history of answered questions:
// which sources a run consulted, what they were cited for, and the answer
// itself. Sources are upserted by URL so repeat consultations refresh the
// crawl date instead of duplicating rows.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the archive database. Safe for use from one goroutine per
// method call; the pipeline records once at the end of a run.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path, creating it and the schema on
// first use.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			model TEXT NOT NULL,
			answer TEXT NOT NULL,
			no_evidence INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			domain TEXT NOT NULL,
			crawl_date TEXT NOT NULL,
			credibility TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS citations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			source_id INTEGER NOT NULL,
			ref INTEGER NOT NULL,
			passage_index INTEGER NOT NULL,
			title TEXT NOT NULL,
			excerpt TEXT NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id),
			FOREIGN KEY(source_id) REFERENCES sources(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_citations_run ON citations(run_id)`,
	}
	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create archive schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one answered question as recorded in the archive.
type Run struct {
	ID         string
	Question   string
	Model      string
	Answer     string
	NoEvidence bool
	CreatedAt  time.Time
}

// Citation ties one [n] marker in an answer to the source passage behind it.
// Credibility is derived from the source domain on write and filled back in
// on read.
type Citation struct {
	Ref          int
	URL          string
	Title        string
	PassageIndex int
	Excerpt      string
	Credibility  string
}

type runRow struct {
	ID         string `db:"id"`
	Question   string `db:"question"`
	Model      string `db:"model"`
	Answer     string `db:"answer"`
	NoEvidence int    `db:"no_evidence"`
	CreatedAt  string `db:"created_at"`
}

type citationRow struct {
	Ref          int    `db:"ref"`
	URL          string `db:"url"`
	Title        string `db:"title"`
	PassageIndex int    `db:"passage_index"`
	Excerpt      string `db:"excerpt"`
	Credibility  string `db:"credibility"`
}

// Record writes one run and its citations in a single transaction. A missing
// run id gets a fresh uuid, a zero CreatedAt gets the current time. Each
// cited URL is upserted into sources with its crawl date refreshed.
func (s *Store) Record(ctx context.Context, run Run, citations []Citation) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	noEvidence := 0
	if run.NoEvidence {
		noEvidence = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, question, model, answer, no_evidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Question, run.Model, run.Answer, noEvidence, run.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	crawlDate := run.CreatedAt.Format(time.RFC3339)
	for _, c := range citations {
		domain := Domain(c.URL)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sources (url, domain, crawl_date, credibility) VALUES (?, ?, ?, ?)
			 ON CONFLICT(url) DO UPDATE SET crawl_date = excluded.crawl_date`,
			c.URL, domain, crawlDate, CredibilityLabel(domain))
		if err != nil {
			return fmt.Errorf("upsert source %s: %w", c.URL, err)
		}
		var sourceID int64
		if err := tx.GetContext(ctx, &sourceID, `SELECT id FROM sources WHERE url = ?`, c.URL); err != nil {
			return fmt.Errorf("resolve source %s: %w", c.URL, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO citations (run_id, source_id, ref, passage_index, title, excerpt) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, sourceID, c.Ref, c.PassageIndex, c.Title, c.Excerpt)
		if err != nil {
			return fmt.Errorf("insert citation [%d]: %w", c.Ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// DefaultRecentLimit caps RecentRuns when the caller passes no limit.
const DefaultRecentLimit = 20

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, question, model, answer, no_evidence, created_at FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
		runs = append(runs, Run{
			ID:         r.ID,
			Question:   r.Question,
			Model:      r.Model,
			Answer:     r.Answer,
			NoEvidence: r.NoEvidence != 0,
			CreatedAt:  createdAt,
		})
	}
	return runs, nil
}

// RunCitations returns a run's citations in [n] order with source fields
// joined in.
func (s *Store) RunCitations(ctx context.Context, runID string) ([]Citation, error) {
	var rows []citationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT c.ref, s.url, c.title, c.passage_index, c.excerpt, s.credibility
		 FROM citations c JOIN sources s ON s.id = c.source_id
		 WHERE c.run_id = ? ORDER BY c.ref`, runID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	cites := make([]Citation, 0, len(rows))
	for _, r := range rows {
		cites = append(cites, Citation(r))
	}
	return cites, nil
}

// Domain extracts the host of a URL without any leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// CredibilityLabel classifies a domain the way the archive tags sources:
// government and education domains are high credibility, everything else is
// general.
func CredibilityLabel(domain string) string {
	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".edu") {
		return "high credibility"
	}
	return "general"
}
