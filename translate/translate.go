// Package translate machine-translates block text through the public
// translate endpoint, one request at a time.
//
// The endpoint is rate limited, so requests run strictly sequentially with
// an enforced delay between them. A failed translation keeps that block's
// original text and never aborts the remaining queue.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/hazyhaar/darkmark/block"
)

const (
	defaultEndpoint = "https://translate.googleapis.com/translate_a/single"
	defaultTarget   = "en"
	defaultDelay    = 300 * time.Millisecond

	// maxRequestURLLen keeps the assembled GET URL under the endpoint's
	// practical limit; longer texts are split and translated in pieces.
	maxRequestURLLen = 2000
)

// Client translates text. The zero value is not usable; construct with New.
type Client struct {
	http     *http.Client
	endpoint string
	target   string
	delay    time.Duration
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithEndpoint overrides the translate endpoint, mainly for tests.
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

// WithTarget sets the target language code.
func WithTarget(lang string) Option {
	return func(c *Client) { c.target = lang }
}

// WithDelay sets the pause between consecutive requests.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a translate client.
func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		endpoint: defaultEndpoint,
		target:   defaultTarget,
		delay:    defaultDelay,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ContainsKorean reports whether the text has any Hangul, which gates
// translation: ASCII-only blocks are submitted as-is.
func ContainsKorean(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// Text translates one string, splitting it when the assembled request URL
// would exceed the endpoint's length bound.
func (c *Client) Text(ctx context.Context, text string) (string, error) {
	pieces := c.split(text)
	var out []string
	for i, p := range pieces {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				return "", err
			}
		}
		t, err := c.request(ctx, p)
		if err != nil {
			return "", err
		}
		out = append(out, t)
	}
	return strings.Join(out, " "), nil
}

// Blocks translates every Korean-bearing block in order, one request at a
// time with the configured delay. Per-block failures substitute the
// original text; the returned slice is always len(blocks).
func (c *Client) Blocks(ctx context.Context, blocks []block.Block) []block.Block {
	out := make([]block.Block, len(blocks))
	copy(out, blocks)
	first := true
	for i := range out {
		b := &out[i]
		if !ContainsKorean(b.PlainText) {
			continue
		}
		if !first {
			if err := c.pause(ctx); err != nil {
				c.log.Warn("translation queue interrupted", "err", err)
				return out
			}
		}
		first = false
		translated, err := c.Text(ctx, b.PlainText)
		if err != nil {
			c.log.Warn("block translation failed, keeping original",
				"index", i, "err", err)
			continue
		}
		b.OriginalText = b.Text
		b.OriginalPlainText = b.PlainText
		b.TranslatedPlainText = translated
		b.PlainText = translated
		b.SetText(block.ToTokens(translated))
		b.Translated = true
	}
	return out
}

func (c *Client) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// split cuts text on word boundaries so each piece's encoded URL stays
// under the length bound.
func (c *Client) split(text string) []string {
	if len(c.buildURL(text)) <= maxRequestURLLen {
		return []string{text}
	}
	words := strings.Fields(text)
	var pieces []string
	var cur strings.Builder
	for _, w := range words {
		candidate := w
		if cur.Len() > 0 {
			candidate = cur.String() + " " + w
		}
		if len(c.buildURL(candidate)) > maxRequestURLLen && cur.Len() > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
			cur.WriteString(w)
			continue
		}
		cur.Reset()
		cur.WriteString(candidate)
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

func (c *Client) buildURL(q string) string {
	v := url.Values{}
	v.Set("client", "gtx")
	v.Set("sl", "auto")
	v.Set("tl", c.target)
	v.Set("dt", "t")
	v.Set("q", q)
	return c.endpoint + "?" + v.Encode()
}

func (c *Client) request(ctx context.Context, q string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(q), nil)
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("translate: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("translate: read response: %w", err)
	}
	return parseResponse(body)
}

// parseResponse extracts the translated segments from the endpoint's nested
// array payload: the first element is a list of [translated, original, ...]
// tuples.
func parseResponse(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if len(root) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}
	var segments [][]json.RawMessage
	if err := json.Unmarshal(root[0], &segments); err != nil {
		return "", fmt.Errorf("translate: decode segments: %w", err)
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(seg[0], &s); err != nil {
			continue
		}
		sb.WriteString(s)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("translate: no segments in response")
	}
	return sb.String(), nil
}
