package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/callsift/callsift/internal/extract"
)

// SaveBatch persists a complete batch atomically: metadata, mentions, and
// quality report all land or none do.
func (s *SQLiteStore) SaveBatch(ctx context.Context, b *Batch) error {
	if b == nil || b.ID == "" {
		return fmt.Errorf("batch id is required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, created_at, dialog_count, oracle_model) VALUES (?, ?, ?, ?)`,
		b.ID, b.CreatedAt, b.DialogCount, b.OracleModel)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mentions (batch_id, dialog_id, turn_id, label_type, theme, subtheme, text_quote, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mention insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range b.Mentions {
		if _, err := stmt.ExecContext(ctx,
			b.ID, m.DialogID, m.TurnID, string(m.Label), m.Theme, m.Subtheme, m.TextQuote, m.Confidence); err != nil {
			return fmt.Errorf("inserting mention: %w", err)
		}
	}

	r := b.Report
	_, err = tx.ExecContext(ctx,
		`INSERT INTO quality_reports
		 (batch_id, created_at, total_mentions, pre_dedup_count, dedup_removed_pct,
		  ambiguous_pct, empty_quote_count, non_client_mention_count, misc_category_share_pct, passed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CreatedAt, r.TotalMentions, r.PreDedupCount, r.DedupRemovedPct,
		r.AmbiguousPct, r.EmptyQuoteCount, r.NonClientMentionCount, r.MiscCategorySharePct, boolToInt(r.Passed))
	if err != nil {
		return fmt.Errorf("inserting quality report: %w", err)
	}

	return tx.Commit()
}

// LatestBatch loads the most recently published batch with its mentions and
// report. Returns (nil, nil) when the store is empty.
func (s *SQLiteStore) LatestBatch(ctx context.Context) (*Batch, error) {
	b := &Batch{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, dialog_count, oracle_model FROM batches ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&b.ID, &b.CreatedAt, &b.DialogCount, &b.OracleModel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest batch: %w", err)
	}

	report, err := s.loadReport(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if report != nil {
		b.Report = report.Report
	}

	b.Mentions, err = s.ListMentions(ctx, b.ID, MentionFilter{})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// LatestReport returns the quality report of the most recent batch, or
// (nil, nil) when nothing has been published yet.
func (s *SQLiteStore) LatestReport(ctx context.Context) (*BatchReport, error) {
	var batchID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM batches ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest batch: %w", err)
	}
	return s.loadReport(ctx, batchID)
}

func (s *SQLiteStore) loadReport(ctx context.Context, batchID string) (*BatchReport, error) {
	br := &BatchReport{BatchID: batchID}
	var passed int
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, total_mentions, pre_dedup_count, dedup_removed_pct,
		        ambiguous_pct, empty_quote_count, non_client_mention_count, misc_category_share_pct, passed
		 FROM quality_reports WHERE batch_id = ?`, batchID).
		Scan(&br.CreatedAt, &br.Report.TotalMentions, &br.Report.PreDedupCount, &br.Report.DedupRemovedPct,
			&br.Report.AmbiguousPct, &br.Report.EmptyQuoteCount, &br.Report.NonClientMentionCount,
			&br.Report.MiscCategorySharePct, &passed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading quality report: %w", err)
	}
	br.Report.Passed = passed != 0
	return br, nil
}

// ListMentions returns a batch's mentions, optionally filtered, in stable
// (dialog_id, turn_id, insertion) order.
func (s *SQLiteStore) ListMentions(ctx context.Context, batchID string, f MentionFilter) ([]extract.Mention, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT dialog_id, turn_id, label_type, theme, subtheme, text_quote, confidence
		 FROM mentions WHERE batch_id = ?`)
	args := []any{batchID}

	if f.Theme != "" {
		query.WriteString(" AND theme = ?")
		args = append(args, f.Theme)
	}
	if f.Subtheme != "" {
		query.WriteString(" AND subtheme = ?")
		args = append(args, f.Subtheme)
	}
	if f.Label != "" {
		query.WriteString(" AND label_type = ?")
		args = append(args, f.Label)
	}
	if f.DialogID != "" {
		query.WriteString(" AND dialog_id = ?")
		args = append(args, f.DialogID)
	}
	query.WriteString(" ORDER BY dialog_id, turn_id, id")
	if f.Limit > 0 {
		query.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing mentions: %w", err)
	}
	defer rows.Close()

	var mentions []extract.Mention
	for rows.Next() {
		var m extract.Mention
		var label string
		if err := rows.Scan(&m.DialogID, &m.TurnID, &label, &m.Theme, &m.Subtheme, &m.TextQuote, &m.Confidence); err != nil {
			return nil, fmt.Errorf("scanning mention: %w", err)
		}
		m.Label = extract.LabelType(label)
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
