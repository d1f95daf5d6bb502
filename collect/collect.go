// Package collect walks a parsed document and groups its visible text into
// leaf blocks tied to structurally meaningful elements.
//
// The pipeline per document scope: select block-like candidates → keep only
// visible, sufficiently-textual ones → leaf reduction (the innermost
// container for a given piece of text wins) → per-leaf text extraction →
// synthetic title block → whole-body fallback → within-scope dedupe.
package collect

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/dedupe"
	"github.com/hazyhaar/darkmark/visibility"
)

// blockTags are the elements eligible to become blocks.
var blockTags = map[atom.Atom]bool{
	atom.Article:    true,
	atom.Section:    true,
	atom.Main:       true,
	atom.Div:        true,
	atom.P:          true,
	atom.Li:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Figure:     true,
	atom.Figcaption: true,
	atom.Table:      true,
	atom.Caption:    true,
}

const minBlockTextLen = 2

var urlRe = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// isBlockLike reports whether an element can anchor a block: a block tag or
// any element carrying role="main".
func isBlockLike(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if blockTags[n.DataAtom] {
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "role" && strings.EqualFold(strings.TrimSpace(a.Val), "main") {
			return true
		}
	}
	return false
}

// Document collects blocks from one parsed document scope. frameURL and
// frameID identify the scope; frameID is nil for the main frame.
func Document(doc *html.Node, frameURL string, frameID *int) *block.Scope {
	candidates := findCandidates(doc)
	leaves := reduceToLeaves(candidates)

	title := pageTitle(doc)
	scope := &block.Scope{
		FrameURL: frameURL,
		Title:    title,
		FrameID:  frameID,
	}

	if title != "" {
		star := block.ToTokens(title)
		scope.Blocks = append(scope.Blocks, block.Block{
			Text:            star,
			PlainText:       title,
			RawText:         star,
			RawPlainText:    title,
			Selector:        "head > title",
			Tag:             "title",
			BlockType:       block.TypeTitle,
			FrameURL:        frameURL,
			FrameTitle:      title,
			FrameID:         frameID,
			FrameBlockIndex: 0,
		})
	}

	for _, el := range leaves {
		text := extractText(el)
		if len([]rune(text)) < minBlockTextLen {
			continue
		}
		star := block.ToTokens(text)
		b := block.Block{
			Text:            star,
			PlainText:       text,
			RawText:         star,
			RawPlainText:    text,
			Selector:        DomPath(el, DefaultPathDepth),
			Tag:             strings.ToLower(el.Data),
			BlockType:       block.TypeContent,
			FrameURL:        frameURL,
			FrameTitle:      title,
			FrameID:         frameID,
			FrameBlockIndex: len(scope.Blocks),
		}
		if link := primaryLink(el, frameURL); link != nil {
			b.LinkHref = link.href
			b.LinkSelector = link.selector
		}
		scope.Blocks = append(scope.Blocks, b)
	}

	if len(scope.Blocks) == 0 {
		if text := bodyText(doc); text != "" {
			star := block.ToTokens(text)
			scope.Blocks = append(scope.Blocks, block.Block{
				Text:            star,
				PlainText:       text,
				RawText:         star,
				RawPlainText:    text,
				Selector:        "body",
				Tag:             "body",
				BlockType:       block.TypeFallback,
				FrameURL:        frameURL,
				FrameTitle:      title,
				FrameID:         frameID,
				FrameBlockIndex: 0,
			})
		}
	}

	// Pass 1: within-block token dedupe, then within-scope block dedupe.
	for i := range scope.Blocks {
		dedupe.WithinBlock(&scope.Blocks[i])
	}
	scope.Blocks = dedupe.Blocks(scope.Blocks)

	return scope
}

// findCandidates returns visible block-like elements with enough raw text.
func findCandidates(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		// A hidden or excluded element hides its whole subtree.
		if n.Type == html.ElementNode && !visibility.IsVisible(n) {
			return
		}
		if isBlockLike(n) {
			if len([]rune(strings.TrimSpace(rawText(n)))) >= minBlockTextLen {
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// reduceToLeaves keeps only the innermost candidates: any candidate whose
// subtree contains another candidate is dropped, so the same text is never
// captured at multiple nesting levels.
func reduceToLeaves(candidates []*html.Node) []*html.Node {
	set := make(map[*html.Node]bool, len(candidates))
	for _, n := range candidates {
		set[n] = true
	}
	var leaves []*html.Node
	for _, el := range candidates {
		if !containsCandidate(el, set) {
			leaves = append(leaves, el)
		}
	}
	return leaves
}

func containsCandidate(el *html.Node, set map[*html.Node]bool) bool {
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && set[c] {
			return true
		}
		if containsCandidate(c, set) {
			return true
		}
	}
	return false
}

// extractText walks a leaf's subtree collecting text, skipping excluded-tag
// subtrees, stripping embedded URLs, and collapsing whitespace.
func extractText(el *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && visibility.IsExcludedTag(n) {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(el)
	text := strings.Join(parts, " ")
	text = urlRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// rawText collects all text in a subtree without filtering, for the
// candidate length check.
func rawText(el *html.Node) string {
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
	walk(el)
	return sb.String()
}

// bodyText returns the whole body's filtered text for the fallback block.
func bodyText(doc *html.Node) string {
	body := findElement(doc, atom.Body)
	if body == nil {
		body = doc
	}
	return extractText(body)
}

// pageTitle picks the page title: og:title meta, twitter:title meta, the
// first h1, then the document title. First non-empty wins.
func pageTitle(doc *html.Node) string {
	if t := metaContent(doc, "property", "og:title"); t != "" {
		return t
	}
	if t := metaContent(doc, "name", "twitter:title"); t != "" {
		return t
	}
	if h1 := findElement(doc, atom.H1); h1 != nil {
		if t := strings.TrimSpace(rawText(h1)); t != "" {
			return strings.Join(strings.Fields(t), " ")
		}
	}
	if title := findElement(doc, atom.Title); title != nil && title.FirstChild != nil {
		return strings.TrimSpace(title.FirstChild.Data)
	}
	return ""
}

func metaContent(doc *html.Node, attrKey, attrVal string) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			match := false
			content := ""
			for _, a := range n.Attr {
				if a.Key == attrKey && strings.EqualFold(a.Val, attrVal) {
					match = true
				}
				if a.Key == "content" {
					content = strings.TrimSpace(a.Val)
				}
			}
			if match && content != "" {
				found = content
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

type linkMeta struct {
	href     string
	selector string
}

// primaryLink finds the nearest enclosing or first contained hyperlink of a
// block element, resolving its target against the scope URL.
func primaryLink(el *html.Node, base string) *linkMeta {
	anchor := enclosingAnchor(el)
	if anchor == nil {
		anchor = containedAnchor(el)
	}
	if anchor == nil {
		return nil
	}
	href := attr(anchor, "href")
	if strings.TrimSpace(href) == "" {
		return nil
	}
	return &linkMeta{
		href:     resolveHref(base, href),
		selector: DomPath(anchor, DefaultPathDepth),
	}
}

func enclosingAnchor(el *html.Node) *html.Node {
	for n := el; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.A && attr(n, "href") != "" {
			return n
		}
	}
	return nil
}

func containedAnchor(el *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A && attr(n, "href") != "" {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(el)
	return found
}

func resolveHref(base, href string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
