package locate

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/darkmark/severity"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func allText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func countMarks(n *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isMark(n) {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return count
}

func TestHighlight_Exact(t *testing.T) {
	doc := parse(t, `<html><body><p>Hurry, limited time offer ends soon!</p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "limited time offer", Severity: severity.High})
	if !r.Matched || r.Strategy != StrategyExact {
		t.Fatalf("got %+v", r)
	}
	if countMarks(doc) != 1 {
		t.Errorf("expected one mark, got %d", countMarks(doc))
	}
	if allText(doc) != "Hurry, limited time offer ends soon!" {
		t.Errorf("text content changed: %q", allText(doc))
	}
}

func TestHighlight_ToleratesInjectedNoise(t *testing.T) {
	// Zero-width space injected mid-phrase by the renderer.
	doc := parse(t, "<html><body><p>limited\u200btime offer</p></body></html>")
	m := New(doc)
	r := m.Highlight(Request{Text: "limited time offer"})
	if !r.Matched {
		t.Fatal("loose matcher should tolerate zero-width noise")
	}
}

func TestHighlight_CrossNodeAggregate(t *testing.T) {
	doc := parse(t, `<html><body><p><span>Save </span><span>10%</span></p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "Save 10%", Severity: severity.Mid})
	if !r.Matched {
		t.Fatal("cross-node match expected")
	}
	if r.Strategy != StrategyExact && r.Strategy != StrategyAggregate {
		t.Fatalf("unexpected strategy %q", r.Strategy)
	}
	// "Save" lives in one span and "10%" in the other; no single text node
	// holds the full phrase, so the aggregate path must fire.
	if r.Strategy != StrategyAggregate {
		t.Errorf("expected aggregate strategy, got %q", r.Strategy)
	}
	// The whole range gets one mark lifted over both spans, not one per node.
	if r.Marks != 1 {
		t.Errorf("Marks = %d, want 1", r.Marks)
	}
	if countMarks(doc) != 1 {
		t.Errorf("expected one mark, got %d", countMarks(doc))
	}
	if got := allText(doc); got != "Save 10%" {
		t.Errorf("text content changed: %q", got)
	}

	if removed := m.Clear(); removed != 1 {
		t.Errorf("Clear removed %d, want 1", removed)
	}
	if got := allText(doc); got != "Save 10%" {
		t.Errorf("text content not restored: %q", got)
	}
}

func TestHighlight_CaseInsensitive(t *testing.T) {
	doc := parse(t, `<html><body><p>SAVE BIG TODAY</p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "save big today", Severity: severity.High})
	if !r.Matched || r.Strategy != StrategyExact {
		t.Fatalf("got %+v", r)
	}
	// Wrapping keeps the document's casing.
	if got := allText(doc); got != "SAVE BIG TODAY" {
		t.Errorf("text content changed: %q", got)
	}
}

func TestHighlight_CaseInsensitiveCrossNode(t *testing.T) {
	doc := parse(t, `<html><body><p><span>SAVE </span><span>Big</span></p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "save big"})
	if !r.Matched || r.Strategy != StrategyAggregate {
		t.Fatalf("got %+v", r)
	}
	if got := allText(doc); got != "SAVE Big" {
		t.Errorf("text content changed: %q", got)
	}
}

func TestHighlight_WordSegmentRetry(t *testing.T) {
	doc := parse(t, `<html><body><p>exclusive deals appear here daily</p></body></html>`)
	m := New(doc)
	// The full sentence was reworded in the page; only "exclusive" survives.
	r := m.Highlight(Request{Text: "grab the exclusive bargain before midnight strikes tonight"})
	if !r.Matched || r.Strategy != StrategyWord {
		t.Fatalf("got %+v", r)
	}
}

func TestHighlight_SentenceSegmentRetry(t *testing.T) {
	doc := parse(t, `<html><body><p>Only 3 left in stock</p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "Totally absent sentence here! Only 3 left in stock."})
	if !r.Matched {
		t.Fatal("sentence segment should match")
	}
	if r.Strategy != StrategySentence {
		t.Errorf("expected sentence strategy, got %q", r.Strategy)
	}
}

func TestHighlight_NoMatch(t *testing.T) {
	doc := parse(t, `<html><body><p>plain page</p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "빈칸없는한글문장"})
	if r.Matched {
		t.Fatalf("expected no match, got %+v", r)
	}
	if countMarks(doc) != 0 {
		t.Error("failed match must not leave marks")
	}
}

func TestHighlight_ElementPath(t *testing.T) {
	doc := parse(t, `<html><body><div id="promo"><p class="cta big">Subscribe now</p></div></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "Subscribe now", Selector: "div#promo > p.cta", Severity: severity.High, Scroll: true})
	if !r.Matched || r.Strategy != StrategyElement {
		t.Fatalf("got %+v", r)
	}
	el := resolvePath(doc, "div#promo > p.cta")
	cls := attr(el, "class")
	for _, want := range []string{severity.ElementBaseClass, severity.ElementBaseClass + "--high", "blink"} {
		if !strings.Contains(cls, want) {
			t.Errorf("class %q missing from %q", want, cls)
		}
	}
}

func TestHighlight_ElementPathFallsBackToText(t *testing.T) {
	doc := parse(t, `<html><body><p>Subscribe now</p></body></html>`)
	m := New(doc)
	r := m.Highlight(Request{Text: "Subscribe now", Selector: "div#gone > p.cta"})
	if !r.Matched || r.Strategy != StrategyExact {
		t.Fatalf("unresolvable selector should fall back to text search, got %+v", r)
	}
}

func TestClear_RoundTrip(t *testing.T) {
	src := `<html><body><div class="wrap"><p>First offer here.</p><p>Second offer there.</p></div></body></html>`
	doc := parse(t, src)
	want := allText(doc)

	m := New(doc)
	if r := m.Highlight(Request{Text: "First offer"}); !r.Matched {
		t.Fatal("setup: highlight failed")
	}
	if r := m.Highlight(Request{Text: "Second offer"}); !r.Matched {
		t.Fatal("setup: second highlight failed")
	}
	if countMarks(doc) != 2 {
		t.Fatalf("expected 2 marks, got %d", countMarks(doc))
	}

	removed := m.Clear()
	if removed != 2 {
		t.Errorf("Clear removed %d, want 2", removed)
	}
	if countMarks(doc) != 0 {
		t.Error("marks remain after Clear")
	}
	if got := allText(doc); got != want {
		t.Errorf("text content not restored:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestClear_StripsElementClasses(t *testing.T) {
	doc := parse(t, `<html><body><div id="promo" class="box">Deal</div></body></html>`)
	m := New(doc)
	m.Highlight(Request{Selector: "div#promo", Severity: severity.Low})
	m.Clear()
	el := resolvePath(doc, "div#promo")
	if got := attr(el, "class"); got != "box" {
		t.Errorf("element classes not restored: %q", got)
	}
}

func TestBulk(t *testing.T) {
	doc := parse(t, `<html><body><p>limited stock</p><p>free shipping today</p></body></html>`)
	m := New(doc)
	n := m.Bulk([]Item{
		{Text: "limited stock", Severity: severity.High},
		{Text: "free shipping today", Severity: severity.Low},
		{Text: "전혀없는문구"},
	})
	if n != 2 {
		t.Errorf("Bulk matched %d, want 2", n)
	}
	if countMarks(doc) != 2 {
		t.Errorf("expected 2 marks, got %d", countMarks(doc))
	}
}

func TestResolvePath_NthOfType(t *testing.T) {
	doc := parse(t, `<html><body><ul><li>a A</li><li>b B</li></ul></body></html>`)
	el := resolvePath(doc, "ul > li:nth-of-type(2)")
	if el == nil {
		t.Fatal("no element resolved")
	}
	if txt := elementText(el); txt != "b B" {
		t.Errorf("wrong element: %q", txt)
	}
	if resolvePath(doc, "ul > li:nth-of-type(3)") != nil {
		t.Error("out-of-range nth should not resolve")
	}
}

func TestLooseRegex_Bounds(t *testing.T) {
	if looseRegex("") != nil {
		t.Error("empty query should not compile")
	}
	if looseRegex(strings.Repeat("a", maxLooseQueryRunes+1)) != nil {
		t.Error("oversize query should be rejected")
	}
	re := looseRegex("a+b")
	if re == nil || !re.MatchString("a + b") {
		t.Error("metacharacters must be escaped and gaps tolerated")
	}
}

func TestMeaningfulAncestor(t *testing.T) {
	doc := parse(t, `<html><body><div><span><b>hi</b></span> and some more surrounding text</div></body></html>`)
	var b *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.B {
			b = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if b == nil {
		t.Fatal("no <b>")
	}
	anc := meaningfulAncestor(b.FirstChild)
	// <b> and <span> hold only "hi"; the div is the first ancestor whose
	// text reaches the meaningful range.
	if anc == nil || anc.DataAtom != atom.Div {
		t.Errorf("expected div ancestor, got %+v", anc)
	}
}
