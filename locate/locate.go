// Package locate re-finds previously extracted text inside a live, possibly
// changed document tree and wraps it in inline mark elements.
//
// Four strategies cascade per request: a loose per-character regex against
// each text node, a cross-node aggregate substring search, then sentence and
// word segmentation retries. An element path supplied by the caller
// short-circuits the text search entirely.
package locate

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/darkmark/severity"
)

// Strategy names which attempt produced a match.
type Strategy string

const (
	StrategyNone      Strategy = ""
	StrategyElement   Strategy = "element"
	StrategyExact     Strategy = "exact"
	StrategyAggregate Strategy = "aggregate"
	StrategySentence  Strategy = "sentence"
	StrategyWord      Strategy = "word"
)

// Request describes one highlight attempt.
type Request struct {
	Text     string
	Severity severity.Level

	// Selector and LinkSelector are element paths recorded at extraction
	// time. When either resolves, the element path bypasses text search.
	Selector     string
	LinkSelector string

	// Scroll marks the first match with a transient blink class so the
	// rendering layer can bring it into view.
	Scroll bool
	// Clear removes all existing highlights before matching.
	Clear bool
}

// Result reports the outcome of a highlight attempt.
type Result struct {
	Matched  bool
	Strategy Strategy
	Marks    int
	// Target is the selector path of the first marked element's parent, for
	// callers that scroll.
	Target string
}

// Marker applies and removes highlights on one document tree. It holds no
// cross-call state beyond the tree itself; repeated calls re-clear and
// re-mark.
type Marker struct {
	doc *html.Node
	log *slog.Logger
}

// Option configures a Marker.
type Option func(*Marker)

// WithLogger sets the marker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Marker) { m.log = l }
}

// New creates a Marker over a parsed document.
func New(doc *html.Node, opts ...Option) *Marker {
	m := &Marker{doc: doc, log: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Highlight runs the cascading match for one request. Exhausting every
// strategy yields Matched=false; that is an outcome, not an error.
func (m *Marker) Highlight(req Request) Result {
	if req.Clear {
		m.Clear()
	}

	// Element path first when the caller recorded one.
	for _, sel := range []string{req.LinkSelector, req.Selector} {
		if sel == "" {
			continue
		}
		if el := resolvePath(m.doc, sel); el != nil {
			m.markElement(el, req)
			return Result{Matched: true, Strategy: StrategyElement, Marks: 1, Target: sel}
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		return Result{}
	}
	return m.matchText(req.Text, req, true)
}

// matchText runs the four text strategies. segments=false in recursive
// calls keeps segmentation from recursing without bound.
func (m *Marker) matchText(query string, req Request, segments bool) Result {
	nodes := textNodes(m.doc)

	if re := looseRegex(query); re != nil {
		if best := bestNodeMatch(nodes, re, query); best != nil {
			mark := newMark(req.Severity, query, req.Scroll)
			if wrapTextRange(best.node, best.start, best.end, mark) != nil {
				return Result{Matched: true, Strategy: StrategyExact, Marks: 1}
			}
		}
	}

	buf, idx := aggregate(nodes)
	if spans := findAggregate(buf, idx, query); len(spans) > 0 {
		// A match spanning several nodes gets one mark lifted over the whole
		// range when the tree shape allows it.
		if liftSpans(spans, newMark(req.Severity, query, req.Scroll)) {
			return Result{Matched: true, Strategy: StrategyAggregate, Marks: 1}
		}
		marks := 0
		for _, sp := range spans {
			blink := req.Scroll && marks == 0
			if wrapTextRange(sp.node, sp.start, sp.end, newMark(req.Severity, query, blink)) != nil {
				marks++
			}
		}
		if marks > 0 {
			return Result{Matched: true, Strategy: StrategyAggregate, Marks: marks}
		}
	}

	if !segments {
		return Result{}
	}

	for _, seg := range sentenceSegments(query) {
		if r := m.matchText(seg, req, false); r.Matched {
			r.Strategy = StrategySentence
			return r
		}
	}
	for _, word := range strings.Fields(query) {
		if r := m.matchText(word, req, false); r.Matched {
			r.Strategy = StrategyWord
			return r
		}
	}

	m.log.Debug("highlight exhausted all strategies", "query_len", len(query))
	return Result{}
}

// sentenceSegments splits a query on sentence-ending punctuation, keeping
// trimmed segments of at least two characters.
func sentenceSegments(q string) []string {
	raw := strings.FieldsFunc(q, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len([]rune(s)) >= 2 {
			out = append(out, s)
		}
	}
	return out
}

func (m *Marker) markElement(el *html.Node, req Request) {
	classes := strings.Fields(attr(el, "class"))
	have := make(map[string]bool, len(classes))
	for _, c := range classes {
		have[c] = true
	}
	for _, c := range req.Severity.ElementClasses() {
		if !have[c] {
			classes = append(classes, c)
		}
	}
	if req.Scroll && !have["blink"] {
		classes = append(classes, "blink")
	}
	setAttr(el, "class", strings.Join(classes, " "))
	if req.Text != "" {
		setAttr(el, "data-dm-text", req.Text)
	}
}

// Clear reverses all highlighting: unwraps every mark wrapper, merges the
// text nodes back together, and strips element-level severity classes.
// Returns the number of marks removed.
func (m *Marker) Clear() int {
	var marks []*html.Node
	var elements []*html.Node
	variants := severity.ElementClassVariants()

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isMark(n) {
			marks = append(marks, n)
		} else if n.Type == html.ElementNode {
			cls := attr(n, "class")
			for _, v := range variants {
				if strings.Contains(cls, v) {
					elements = append(elements, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(m.doc)

	for _, mk := range marks {
		unwrap(mk)
	}
	normalizeText(m.doc)

	drop := make(map[string]bool, len(variants))
	for _, v := range variants {
		drop[v] = true
	}
	for _, el := range elements {
		var kept []string
		for _, c := range strings.Fields(attr(el, "class")) {
			if !drop[c] {
				kept = append(kept, c)
			}
		}
		setAttr(el, "class", strings.Join(kept, " "))
	}
	return len(marks)
}

// Item is one entry of a bulk highlight request.
type Item struct {
	Text     string
	Severity severity.Level
}

// Bulk clears existing highlights once and applies every item. Returns the
// number of items that matched.
func (m *Marker) Bulk(items []Item) int {
	m.Clear()
	matched := 0
	for _, it := range items {
		r := m.Highlight(Request{Text: it.Text, Severity: it.Severity})
		if r.Matched {
			matched++
		}
	}
	return matched
}
