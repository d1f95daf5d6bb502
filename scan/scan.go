// Package scan orchestrates a full page scan: fetch, per-frame block
// collection, cross-frame dedupe, quality filtering, optional translation,
// and submission to the backend.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/collect"
	"github.com/hazyhaar/darkmark/fetch"
	"github.com/hazyhaar/darkmark/quality"
	"github.com/hazyhaar/darkmark/store"
	"github.com/hazyhaar/darkmark/translate"
)

// ErrNoData means two collection attempts produced no usable text.
var ErrNoData = errors.New("scan: no text collected")

// Config tunes a Scanner.
type Config struct {
	Fetch   fetch.Options
	Quality quality.Config
	// Translate enables machine translation of Korean blocks before
	// submission.
	Translate bool
	// BackendURL is the darkmarkd base URL. Empty disables submission.
	BackendURL string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scanner runs scans. Safe for sequential reuse.
type Scanner struct {
	cfg        Config
	filter     *quality.Filter
	translator *translate.Client
	log        *slog.Logger
}

// New creates a Scanner.
func New(cfg Config, opts ...Option) *Scanner {
	cfg.defaults()
	s := &Scanner{
		cfg:        cfg,
		filter:     quality.New(cfg.Quality),
		translator: translate.New(translate.WithLogger(cfg.Logger)),
		log:        cfg.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTranslator overrides the default translation client.
func WithTranslator(t *translate.Client) Option {
	return func(s *Scanner) { s.translator = t }
}

// Result is the outcome of one scan.
type Result struct {
	Submission *store.Submission
	Blocks     []block.Block
	// DocID is set when the backend accepted and stored the submission.
	DocID string
}

// Scan fetches target, extracts and filters its blocks, and, when a backend
// is configured, submits the payload. An empty first pass is retried once
// from the top before giving up with ErrNoData.
func (s *Scanner) Scan(ctx context.Context, target string) (*Result, error) {
	scopes, blocks, err := s.attempt(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		s.log.Info("scan: empty collection, retrying once", "url", target)
		scopes, blocks, err = s.attempt(ctx, target)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			return nil, ErrNoData
		}
	}

	if s.cfg.Translate {
		blocks = s.translator.Blocks(ctx, blocks)
	}

	sub := buildSubmission(target, scopes, blocks)
	res := &Result{Submission: sub, Blocks: blocks}

	if s.cfg.BackendURL != "" {
		id, err := s.Submit(ctx, sub)
		if err != nil {
			return res, fmt.Errorf("scan: submit: %w", err)
		}
		res.DocID = id
	}
	return res, nil
}

// attempt runs one full fetch-collect-filter pass.
func (s *Scanner) attempt(ctx context.Context, target string) ([]*block.Scope, []block.Block, error) {
	scopes, err := fetch.Scopes(ctx, target, s.cfg.Fetch)
	if err != nil {
		return nil, nil, fmt.Errorf("scan: fetch: %w", err)
	}

	merged := collect.Merge(scopes)

	kept := merged[:0]
	for i := range merged {
		if s.filter.ShouldKeep(&merged[i]) {
			kept = append(kept, merged[i])
		}
	}
	return scopes, kept, nil
}

func buildSubmission(target string, scopes []*block.Scope, blocks []block.Block) *store.Submission {
	sub := &store.Submission{
		TabURL:           target,
		CollectedAt:      time.Now().UTC().Format(time.RFC3339),
		FramesCollected:  len(scopes),
		StructuredBlocks: blocks,
	}
	if len(scopes) > 0 {
		sub.TabTitle = scopes[0].Title
	}

	texts := make([]string, 0, len(blocks))
	originals := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
		if b.OriginalText != "" {
			originals = append(originals, b.OriginalText)
		}
	}
	sub.FullText = strings.Join(texts, block.BlockDelim)
	sub.OriginalText = strings.Join(originals, block.BlockDelim)

	for _, sc := range scopes {
		sub.Frames = append(sub.Frames, sc.Text())
		sub.FrameMetadata = append(sub.FrameMetadata, store.FrameMeta{
			URL:     sc.FrameURL,
			Title:   sc.Title,
			FrameID: sc.FrameID,
		})
	}
	return sub
}

// Submit posts a submission to the backend. A response without a document id
// means the backend did not store it; that is reported as an empty id, not
// an error.
func (s *Scanner) Submit(ctx context.Context, sub *store.Submission) (string, error) {
	raw, err := json.Marshal(sub)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.cfg.BackendURL, "/")+"/collect", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("x-api-key", s.cfg.APIKey)
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned %s", resp.Status)
	}

	var body struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.ID, nil
}

// Results fetches the classification rows for a stored document.
func (s *Scanner) Results(ctx context.Context, docID string) ([]store.ModelResult, error) {
	var rows []store.ModelResult
	if err := s.getJSON(ctx, "/model?id="+docID, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Summary fetches the aggregate counts for a stored document.
func (s *Scanner) Summary(ctx context.Context, docID string) (*store.Summary, error) {
	var sum store.Summary
	if err := s.getJSON(ctx, "/model/summary?id="+docID, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Scanner) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(s.cfg.BackendURL, "/")+path, nil)
	if err != nil {
		return err
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("x-api-key", s.cfg.APIKey)
	}
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
