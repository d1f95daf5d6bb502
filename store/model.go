package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/darkmark/dbopen"
)

// ModelResult is one classification row for a block of a page.
type ModelResult struct {
	BlockIndex     int     `json:"blockIndex"`
	Text           string  `json:"string"`
	TranslatedText string  `json:"translatedString,omitempty"`
	IsDarkPattern  bool    `json:"is_darkpattern"`
	Probability    float64 `json:"probability"`
	Type           string  `json:"type,omitempty"`
	Predicate      string  `json:"predicate,omitempty"`
}

// Summary aggregates a page's classification results.
type Summary struct {
	Total   int     `json:"total"`
	Dark    int     `json:"dark"`
	Percent float64 `json:"percent"`
}

// InsertModelResults replaces the classification rows of a page.
func (s *Store) InsertModelResults(ctx context.Context, pageID string, results []ModelResult) error {
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM model_results WHERE page_id = ?`, pageID); err != nil {
			return err
		}
		for _, r := range results {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO model_results (page_id, block_index, text, translated_text,
				                           is_darkpattern, probability, pattern_type, predicate)
				VALUES (?,?,?,?,?,?,?,?)`,
				pageID, r.BlockIndex, r.Text, r.TranslatedText,
				r.IsDarkPattern, r.Probability, r.Type, r.Predicate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: insert model results: %w", err)
	}
	return nil
}

// AppendModelResult inserts or updates a single classification row. Used by
// the enrichment worker to persist incrementally as blocks complete.
func (s *Store) AppendModelResult(ctx context.Context, pageID string, r ModelResult) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO model_results (page_id, block_index, text, translated_text,
		                           is_darkpattern, probability, pattern_type, predicate)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(page_id, block_index) DO UPDATE SET
			text=excluded.text, translated_text=excluded.translated_text,
			is_darkpattern=excluded.is_darkpattern, probability=excluded.probability,
			pattern_type=excluded.pattern_type, predicate=excluded.predicate`,
		pageID, r.BlockIndex, r.Text, r.TranslatedText,
		r.IsDarkPattern, r.Probability, r.Type, r.Predicate)
	return err
}

// ModelResults returns the classification rows of a page, in block order.
func (s *Store) ModelResults(ctx context.Context, pageID string) ([]ModelResult, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT block_index, text, translated_text, is_darkpattern,
		       probability, pattern_type, predicate
		FROM model_results WHERE page_id = ? ORDER BY block_index ASC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ModelResult
	for rows.Next() {
		var r ModelResult
		if err := rows.Scan(&r.BlockIndex, &r.Text, &r.TranslatedText,
			&r.IsDarkPattern, &r.Probability, &r.Type, &r.Predicate); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ModelSummary returns total and dark-pattern counts for a page.
func (s *Store) ModelSummary(ctx context.Context, pageID string) (*Summary, error) {
	sum := &Summary{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_darkpattern), 0)
		FROM model_results WHERE page_id = ?`, pageID).Scan(&sum.Total, &sum.Dark)
	if err != nil {
		return nil, err
	}
	if sum.Total > 0 {
		sum.Percent = float64(sum.Dark) / float64(sum.Total) * 100
	}
	return sum, nil
}
