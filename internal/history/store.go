package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded analysis run.
type Run struct {
	ID          int64         `json:"id"`
	Repo        string        `json:"repo"`
	Score       int           `json:"score"`
	Issues      int           `json:"issues"`
	Suggestions int           `json:"suggestions"`
	Cards       int           `json:"cards"`
	AIProvider  string        `json:"ai_provider,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Store persists analysis runs in a SQLite database. A nil Store is a valid
// "history disabled" state: Record and Recent become no-ops.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	repo         TEXT NOT NULL,
	score        INTEGER NOT NULL,
	issues       INTEGER NOT NULL,
	suggestions  INTEGER NOT NULL,
	cards        INTEGER NOT NULL,
	ai_provider  TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	duration_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_repo ON runs(repo);
`

// Open opens (creating if needed) the run database at path. An empty path
// disables history and returns a nil store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends a run.
func (s *Store) Record(ctx context.Context, run Run) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (repo, score, issues, suggestions, cards, ai_provider, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Repo, run.Score, run.Issues, run.Suggestions, run.Cards,
		run.AIProvider, run.StartedAt.UTC().Format(time.RFC3339), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first, capped at limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo, score, issues, suggestions, cards, ai_provider, started_at, duration_ms
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

// ForRepo returns the latest runs for one repository, newest first.
func (s *Store) ForRepo(ctx context.Context, repo string, limit int) ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo, score, issues, suggestions, cards, ai_provider, started_at, duration_ms
		 FROM runs WHERE repo = ? ORDER BY id DESC LIMIT ?`, repo, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs for %s: %w", repo, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Repo, &r.Score, &r.Issues, &r.Suggestions,
			&r.Cards, &r.AIProvider, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		t, err := time.Parse(time.RFC3339, startedAt)
		if err == nil {
			r.StartedAt = t
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
