package store

import "fmt"

// migrate creates all tables if they don't exist. Statements are idempotent
// so opening an existing database is safe.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			dialog_count INTEGER NOT NULL DEFAULT 0,
			oracle_model TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS mentions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			dialog_id TEXT NOT NULL,
			turn_id INTEGER NOT NULL,
			label_type TEXT NOT NULL,
			theme TEXT NOT NULL,
			subtheme TEXT NOT NULL,
			text_quote TEXT NOT NULL,
			confidence REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_batch ON mentions(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_theme ON mentions(batch_id, theme, subtheme)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_dialog ON mentions(batch_id, dialog_id, turn_id)`,

		`CREATE TABLE IF NOT EXISTS quality_reports (
			batch_id TEXT PRIMARY KEY REFERENCES batches(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_mentions INTEGER NOT NULL,
			pre_dedup_count INTEGER NOT NULL,
			dedup_removed_pct REAL NOT NULL,
			ambiguous_pct REAL NOT NULL,
			empty_quote_count INTEGER NOT NULL,
			non_client_mention_count INTEGER NOT NULL,
			misc_category_share_pct REAL NOT NULL,
			passed INTEGER NOT NULL
		)`,
	}

	for i, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}
