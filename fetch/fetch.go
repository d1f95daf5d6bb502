// Package fetch loads pages for block extraction. A plain HTTP fetcher
// handles static documents; script-heavy pages escalate to a headless
// browser that renders before extraction.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/collect"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	defaultTimeout   = 30 * time.Second
	maxBodyBytes     = 8 << 20

	// defaultMinContentChars is the rendered-text floor under which a static
	// fetch is considered script-gated and retried through the browser.
	defaultMinContentChars = 80
)

// Options tunes page loading.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	ForceBrowser    bool // skip the static attempt entirely
	DisableBrowser  bool // never escalate, even for empty static results
	MinContentChars int
	BrowserBin      string // explicit browser binary path; empty auto-detects
	Logger          *slog.Logger
}

func (o *Options) defaults() {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MinContentChars <= 0 {
		o.MinContentChars = defaultMinContentChars
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Scopes loads target and extracts every frame scope, escalating from the
// static fetcher to the headless browser when the static result looks
// script-gated.
func Scopes(ctx context.Context, target string, opts Options) ([]*block.Scope, error) {
	opts.defaults()

	if !opts.ForceBrowser {
		loader := NewHTTPLoader(target, opts)
		scopes, err := collect.Frames(ctx, loader, collect.Options{Logger: opts.Logger})
		if err == nil && !needsEscalation(scopes, opts.MinContentChars) {
			return scopes, nil
		}
		if opts.DisableBrowser {
			if err != nil {
				return nil, err
			}
			return scopes, nil
		}
		if err != nil {
			opts.Logger.Info("static fetch failed, escalating to browser", "url", target, "err", err)
		} else {
			opts.Logger.Info("static fetch too thin, escalating to browser", "url", target)
		}
	}

	loader, err := NewBrowserLoader(target, opts)
	if err != nil {
		return nil, err
	}
	defer loader.Close()
	return collect.Frames(ctx, loader, collect.Options{Logger: opts.Logger})
}

// needsEscalation reports whether a static extraction looks too thin to
// trust: no content blocks at all, or less visible text than the floor.
func needsEscalation(scopes []*block.Scope, minChars int) bool {
	content := 0
	chars := 0
	for _, s := range scopes {
		for _, b := range s.Blocks {
			if b.BlockType == block.TypeTitle {
				continue
			}
			content++
			chars += len([]rune(b.PlainText))
		}
	}
	return content == 0 || chars < minChars
}

// HTTPLoader implements collect.FrameLoader over plain GETs. Same-origin
// child frames are fetched directly; cross-origin frames are reported as
// access denied, matching the reach of an in-page extractor.
type HTTPLoader struct {
	target string
	client *http.Client
	ua     string
	log    *slog.Logger

	nextFrameID int
}

// NewHTTPLoader creates a static page loader for one target URL.
func NewHTTPLoader(target string, opts Options) *HTTPLoader {
	opts.defaults()
	return &HTTPLoader{
		target: target,
		client: &http.Client{Timeout: opts.Timeout},
		ua:     opts.UserAgent,
		log:    opts.Logger,
	}
}

// OpenRoot fetches and parses the top-level document.
func (l *HTTPLoader) OpenRoot(ctx context.Context) (*collect.FrameDocument, error) {
	root, finalURL, err := l.get(ctx, l.target)
	if err != nil {
		return nil, fmt.Errorf("fetch root %s: %w", l.target, err)
	}
	return &collect.FrameDocument{URL: finalURL, Root: root}, nil
}

// ChildFrames fetches the parent's same-origin iframes. Cross-origin and
// srcless frames come back with ErrAccessDenied.
func (l *HTTPLoader) ChildFrames(ctx context.Context, parent *collect.FrameDocument) ([]collect.ChildFrame, error) {
	var out []collect.ChildFrame
	for _, src := range frameSrcs(parent.Root) {
		resolved, ok := resolveFrameURL(parent.URL, src)
		if !ok {
			out = append(out, collect.ChildFrame{
				Err: fmt.Errorf("frame %q: %w", src, collect.ErrAccessDenied),
			})
			continue
		}
		if !sameOrigin(parent.URL, resolved) {
			out = append(out, collect.ChildFrame{
				Err: fmt.Errorf("cross-origin frame %s: %w", resolved, collect.ErrAccessDenied),
			})
			continue
		}
		root, finalURL, err := l.get(ctx, resolved)
		if err != nil {
			out = append(out, collect.ChildFrame{
				Err: fmt.Errorf("frame %s: %v: %w", resolved, err, collect.ErrAccessDenied),
			})
			continue
		}
		l.nextFrameID++
		id := l.nextFrameID
		out = append(out, collect.ChildFrame{
			Doc: &collect.FrameDocument{URL: finalURL, FrameID: &id, Root: root},
		})
	}
	return out, nil
}

func (l *HTTPLoader) get(ctx context.Context, target string) (*html.Node, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", l.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	root, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("parse: %w", err)
	}
	return root, resp.Request.URL.String(), nil
}

// frameSrcs lists the src attributes of iframe and frame elements.
func frameSrcs(root *html.Node) []string {
	var srcs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Iframe || n.DataAtom == atom.Frame) {
			for _, a := range n.Attr {
				if a.Key == "src" && strings.TrimSpace(a.Val) != "" {
					srcs = append(srcs, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return srcs
}

func resolveFrameURL(base, src string) (string, bool) {
	if strings.HasPrefix(src, "about:") || strings.HasPrefix(src, "javascript:") ||
		strings.HasPrefix(src, "data:") {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	s, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	r := b.ResolveReference(s)
	if r.Scheme != "http" && r.Scheme != "https" {
		return "", false
	}
	return r.String(), true
}

func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host
}
