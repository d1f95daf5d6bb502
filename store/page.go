package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/dbopen"
)

// FrameMeta describes one collected frame scope.
type FrameMeta struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	FrameID *int   `json:"frameId"`
}

// Submission is the collect payload as received from a scanner.
type Submission struct {
	TabURL           string        `json:"tabUrl"`
	TabTitle         string        `json:"tabTitle"`
	CollectedAt      string        `json:"collectedAt"`
	FramesCollected  int           `json:"framesCollected"`
	FullText         string        `json:"fullText"`
	OriginalText     string        `json:"originalText,omitempty"`
	Frames           []string      `json:"frames,omitempty"`
	FrameMetadata    []FrameMeta   `json:"frameMetadata,omitempty"`
	StructuredBlocks []block.Block `json:"structuredBlocks,omitempty"`
	SnapshotHTML     string        `json:"snapshotHtml,omitempty"`
}

// Page is a stored submission plus its modeling state.
type Page struct {
	ID              string        `json:"id"`
	TabURL          string        `json:"tabUrl"`
	TabTitle        string        `json:"tabTitle"`
	CollectedAt     string        `json:"collectedAt"`
	FramesCollected int           `json:"framesCollected"`
	FullText        string        `json:"fullText"`
	OriginalText    string        `json:"originalText,omitempty"`
	Frames          []string      `json:"frames,omitempty"`
	FrameMetadata   []FrameMeta   `json:"frameMetadata,omitempty"`
	SnapshotHTML    string        `json:"snapshotHtml,omitempty"`
	Status          string        `json:"status"`
	ProgressCurrent int           `json:"progressCurrent"`
	ProgressTotal   int           `json:"progressTotal"`
	ErrorMessage    string        `json:"error,omitempty"`
	CompletedAt     *int64        `json:"completedAt,omitempty"`
	CreatedAt       int64         `json:"createdAt"`
}

// InsertSubmission persists a submission and its structured blocks in one
// transaction and returns the new page ID. The HTML snapshot is sanitized
// before storage; text fields are stored as received.
func (s *Store) InsertSubmission(ctx context.Context, sub *Submission) (string, error) {
	if sub.TabURL == "" {
		return "", errors.New("store: submission missing tabUrl")
	}

	framesJSON, err := json.Marshal(sub.Frames)
	if err != nil {
		return "", fmt.Errorf("store: marshal frames: %w", err)
	}
	metaJSON, err := json.Marshal(sub.FrameMetadata)
	if err != nil {
		return "", fmt.Errorf("store: marshal frame metadata: %w", err)
	}

	id := s.newID()
	now := time.Now().UnixMilli()
	snapshot := ""
	if sub.SnapshotHTML != "" {
		snapshot = s.sanitize.Sanitize(sub.SnapshotHTML)
	}

	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pages (id, tab_url, tab_title, collected_at, frames_collected,
			                   full_text, original_text, frames_json, frame_meta_json,
			                   snapshot_html, status, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			id, sub.TabURL, sub.TabTitle, sub.CollectedAt, sub.FramesCollected,
			sub.FullText, sub.OriginalText, string(framesJSON), string(metaJSON),
			snapshot, StatusPending, now,
		)
		if err != nil {
			return err
		}
		for i, b := range sub.StructuredBlocks {
			blockJSON, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("marshal block %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO page_blocks (page_id, block_index, block_json)
				VALUES (?,?,?)`, id, i, string(blockJSON)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store: insert submission: %w", err)
	}
	return id, nil
}

const pageColumns = `id, tab_url, tab_title, collected_at, frames_collected,
       full_text, original_text, frames_json, frame_meta_json, snapshot_html,
       status, progress_current, progress_total, error_message, completed_at, created_at`

func scanPage(row *sql.Row) (*Page, error) {
	p := &Page{}
	var framesJSON, metaJSON string
	var completedAt sql.NullInt64
	err := row.Scan(&p.ID, &p.TabURL, &p.TabTitle, &p.CollectedAt, &p.FramesCollected,
		&p.FullText, &p.OriginalText, &framesJSON, &metaJSON, &p.SnapshotHTML,
		&p.Status, &p.ProgressCurrent, &p.ProgressTotal, &p.ErrorMessage,
		&completedAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Int64
	}
	if err := json.Unmarshal([]byte(framesJSON), &p.Frames); err != nil {
		return nil, fmt.Errorf("store: frames json: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &p.FrameMetadata); err != nil {
		return nil, fmt.Errorf("store: frame metadata json: %w", err)
	}
	return p, nil
}

// PageByID returns the page with the given ID, or ErrNotFound.
func (s *Store) PageByID(ctx context.Context, id string) (*Page, error) {
	return scanPage(s.DB.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
}

// LatestPage returns the most recently collected page, or ErrNotFound.
func (s *Store) LatestPage(ctx context.Context) (*Page, error) {
	return scanPage(s.DB.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages ORDER BY created_at DESC LIMIT 1`))
}

// LatestPageByTabURL returns the most recent page collected from tabURL,
// or ErrNotFound.
func (s *Store) LatestPageByTabURL(ctx context.Context, tabURL string) (*Page, error) {
	return scanPage(s.DB.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE tab_url = ? ORDER BY created_at DESC LIMIT 1`,
		tabURL))
}

// PageBlocks returns the structured blocks stored with a page, in order.
func (s *Store) PageBlocks(ctx context.Context, pageID string) ([]block.Block, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT block_json FROM page_blocks
		WHERE page_id = ? ORDER BY block_index ASC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []block.Block
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var b block.Block
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("store: block json: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// SetStatus updates the modeling status of a page.
func (s *Store) SetStatus(ctx context.Context, pageID, status string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE pages SET status = ? WHERE id = ?`, status, pageID)
	return err
}

// SetProgress updates the modeling progress counters of a page.
func (s *Store) SetProgress(ctx context.Context, pageID string, current, total int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE pages SET progress_current = ?, progress_total = ? WHERE id = ?`,
		current, total, pageID)
	return err
}

// MarkCompleted marks a page's modeling as finished.
func (s *Store) MarkCompleted(ctx context.Context, pageID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE pages SET status = ?, completed_at = ?, error_message = ''
		WHERE id = ?`, StatusCompleted, time.Now().UnixMilli(), pageID)
	return err
}

// MarkFailed marks a page's modeling as failed with a reason.
func (s *Store) MarkFailed(ctx context.Context, pageID, reason string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE pages SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?`, StatusFailed, time.Now().UnixMilli(), reason, pageID)
	return err
}
