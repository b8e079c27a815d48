package store

import (
	"context"
	"fmt"
)

// ThemeSummary aggregates a batch's mentions by theme, largest first.
func (s *SQLiteStore) ThemeSummary(ctx context.Context, batchID string) ([]ThemeCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT theme, COUNT(*), AVG(confidence)
		 FROM mentions WHERE batch_id = ?
		 GROUP BY theme ORDER BY COUNT(*) DESC, theme`, batchID)
	if err != nil {
		return nil, fmt.Errorf("theme summary: %w", err)
	}
	defer rows.Close()

	var out []ThemeCount
	for rows.Next() {
		var tc ThemeCount
		if err := rows.Scan(&tc.Theme, &tc.Count, &tc.AvgConf); err != nil {
			return nil, fmt.Errorf("scanning theme summary: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// SubthemeSummary aggregates a batch's mentions by (theme, subtheme),
// largest first.
func (s *SQLiteStore) SubthemeSummary(ctx context.Context, batchID string) ([]ThemeCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT theme, subtheme, COUNT(*), AVG(confidence)
		 FROM mentions WHERE batch_id = ?
		 GROUP BY theme, subtheme ORDER BY COUNT(*) DESC, theme, subtheme`, batchID)
	if err != nil {
		return nil, fmt.Errorf("subtheme summary: %w", err)
	}
	defer rows.Close()

	var out []ThemeCount
	for rows.Next() {
		var tc ThemeCount
		if err := rows.Scan(&tc.Theme, &tc.Subtheme, &tc.Count, &tc.AvgConf); err != nil {
			return nil, fmt.Errorf("scanning subtheme summary: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
