// Package store provides the SQLite publish store for mention batches.
//
// One database file holds every published batch: the mention rows, the
// batch metadata, and the quality report computed for it. Readers (HTTP
// API, MCP tools, CLI) only ever see complete batches; a run that aborts
// mid-extraction never reaches the store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/callsift/callsift/internal/extract"
	"github.com/callsift/callsift/internal/quality"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.callsift/callsift.db"

// Batch is one published pipeline run: the deduplicated mentions plus the
// quality report computed over them.
type Batch struct {
	ID          string
	CreatedAt   time.Time
	DialogCount int
	OracleModel string
	Mentions    []extract.Mention
	Report      quality.Report
}

// ThemeCount is one row of an aggregate summary.
type ThemeCount struct {
	Theme    string  `json:"theme"`
	Subtheme string  `json:"subtheme,omitempty"`
	Count    int     `json:"count"`
	AvgConf  float64 `json:"avg_confidence"`
}

// MentionFilter narrows ListMentions results.
type MentionFilter struct {
	Theme    string
	Subtheme string
	Label    string
	DialogID string
	Limit    int
	Offset   int
}

// Stats holds observability counters about the store.
type Stats struct {
	BatchCount   int64 `json:"batch_count"`
	MentionCount int64 `json:"mention_count"`
	DialogCount  int64 `json:"dialog_count"`
	DBSizeBytes  int64 `json:"db_size_bytes"`
}

// Store is the publish-store interface consumed by the API, MCP, and CLI
// layers.
type Store interface {
	SaveBatch(ctx context.Context, b *Batch) error
	LatestBatch(ctx context.Context) (*Batch, error)
	LatestReport(ctx context.Context) (*BatchReport, error)
	ThemeSummary(ctx context.Context, batchID string) ([]ThemeCount, error)
	SubthemeSummary(ctx context.Context, batchID string) ([]ThemeCount, error)
	ListMentions(ctx context.Context, batchID string, f MentionFilter) ([]extract.Mention, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// BatchReport pairs a quality report with the batch it belongs to.
type BatchReport struct {
	BatchID   string         `json:"batch_id"`
	CreatedAt time.Time      `json:"created_at"`
	Report    quality.Report `json:"report"`
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Config holds configuration for Open.
type Config struct {
	DBPath string
}

// Open creates a SQLite-backed Store. Pass ":memory:" for in-memory
// databases (testing).
func Open(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats reports store-level counters.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM batches").Scan(&stats.BatchCount); err != nil {
		return nil, fmt.Errorf("counting batches: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mentions").Scan(&stats.MentionCount); err != nil {
		return nil, fmt.Errorf("counting mentions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT dialog_id) FROM mentions").Scan(&stats.DialogCount); err != nil {
		return nil, fmt.Errorf("counting dialogues: %w", err)
	}
	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats.DBSizeBytes = pageCount * pageSize
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
