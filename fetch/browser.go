package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hazyhaar/darkmark/collect"
)

// BrowserLoader implements collect.FrameLoader through a headless Chrome,
// rendering scripts before extraction. Frames are entered via the devtools
// protocol, which reaches same-process frames; detached or OOPIF frames
// that refuse entry surface as access denied.
type BrowserLoader struct {
	target  string
	timeout time.Duration
	log     *slog.Logger

	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page

	// frames maps an opened document back to the rod page or frame that
	// produced it, for child enumeration.
	frames      map[*collect.FrameDocument]*rod.Page
	nextFrameID int
}

// NewBrowserLoader launches headless Chrome for one target URL.
func NewBrowserLoader(target string, opts Options) (*BrowserLoader, error) {
	opts.defaults()

	l := launcher.New().Headless(true)
	l = l.Set("disable-blink-features", "AutomationControlled")
	if opts.BrowserBin != "" {
		l = l.Bin(opts.BrowserBin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser connect: %w", err)
	}

	return &BrowserLoader{
		target:  target,
		timeout: opts.Timeout,
		log:     opts.Logger,
		lnch:    l,
		browser: b,
		frames:  make(map[*collect.FrameDocument]*rod.Page),
	}, nil
}

// Close shuts the browser down and releases the launcher's user data dir.
func (l *BrowserLoader) Close() {
	if l.page != nil {
		_ = l.page.Close()
	}
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.lnch != nil {
		l.lnch.Cleanup()
	}
}

// OpenRoot navigates to the target with stealth applied and parses the
// rendered document.
func (l *BrowserLoader) OpenRoot(ctx context.Context) (*collect.FrameDocument, error) {
	page, err := stealth.Page(l.browser)
	if err != nil {
		return nil, fmt.Errorf("browser page: %w", err)
	}
	l.page = page

	navCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(l.target); err != nil {
		return nil, fmt.Errorf("browser navigate %s: %w", l.target, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser wait load: %w", err)
	}

	doc, err := l.parsePage(navCtx, page)
	if err != nil {
		return nil, err
	}
	l.frames[doc] = page
	return doc, nil
}

// ChildFrames enumerates the parent's iframes through the rendered page.
func (l *BrowserLoader) ChildFrames(ctx context.Context, parent *collect.FrameDocument) ([]collect.ChildFrame, error) {
	page, ok := l.frames[parent]
	if !ok {
		return nil, nil
	}

	frameCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	els, err := page.Context(frameCtx).Elements("iframe, frame")
	if err != nil {
		return nil, fmt.Errorf("browser frame query: %w", err)
	}

	var out []collect.ChildFrame
	for _, el := range els {
		fp, err := el.Frame()
		if err != nil {
			out = append(out, collect.ChildFrame{
				Err: fmt.Errorf("frame handle: %v: %w", err, collect.ErrAccessDenied),
			})
			continue
		}
		doc, err := l.parsePage(frameCtx, fp)
		if err != nil {
			out = append(out, collect.ChildFrame{
				Err: fmt.Errorf("frame content: %v: %w", err, collect.ErrAccessDenied),
			})
			continue
		}
		l.nextFrameID++
		id := l.nextFrameID
		doc.FrameID = &id
		l.frames[doc] = fp
		out = append(out, collect.ChildFrame{Doc: doc})
	}
	return out, nil
}

// parsePage serializes a page's live DOM and parses it back into a tree.
func (l *BrowserLoader) parsePage(ctx context.Context, page *rod.Page) (*collect.FrameDocument, error) {
	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser serialize: %w", err)
	}
	root, err := html.Parse(strings.NewReader(res.Value.Str()))
	if err != nil {
		return nil, fmt.Errorf("browser parse: %w", err)
	}

	info, err := page.Context(ctx).Info()
	pageURL := l.target
	if err == nil && info.URL != "" {
		pageURL = info.URL
	}
	return &collect.FrameDocument{URL: pageURL, Root: root}, nil
}
