package locate

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/darkmark/severity"
)

// skippedTags are subtrees the locator never searches for text.
var skippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// textNodes returns the document's searchable text nodes in document order.
// Existing mark wrappers are descended into so repeated highlight calls still
// see the text they wrapped.
func textNodes(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func isMark(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Mark &&
		strings.Contains(attr(n, "class"), severity.MarkBaseClass)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// newMark builds the inline wrapper element for one matched span.
func newMark(level severity.Level, query string, blink bool) *html.Node {
	class := level.MarkClass()
	if blink {
		class += " blink"
	}
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Mark,
		Data:     "mark",
		Attr: []html.Attribute{
			{Key: "class", Val: class},
			{Key: "data-dm-text", Val: query},
		},
	}
}

// wrapTextRange wraps the byte range [start,end) of a text node in a mark,
// splitting the node into up to three pieces. Returns the mark element.
func wrapTextRange(n *html.Node, start, end int, mark *html.Node) *html.Node {
	parent := n.Parent
	if parent == nil || start < 0 || end > len(n.Data) || start >= end {
		return nil
	}
	before := n.Data[:start]
	mid := n.Data[start:end]
	after := n.Data[end:]

	next := n.NextSibling
	parent.RemoveChild(n)

	insert := func(child *html.Node) {
		if next != nil {
			parent.InsertBefore(child, next)
		} else {
			parent.AppendChild(child)
		}
	}
	if before != "" {
		insert(&html.Node{Type: html.TextNode, Data: before})
	}
	mark.AppendChild(&html.Node{Type: html.TextNode, Data: mid})
	insert(mark)
	if after != "" {
		insert(&html.Node{Type: html.TextNode, Data: after})
	}
	return mark
}

// liftSpans wraps a cross-node match in a single mark by splitting the
// boundary text nodes and moving the covered siblings under the mark. Works
// only when the partial boundary nodes sit directly under the common
// ancestor; otherwise splitting would drag unmatched text into the mark, and
// the caller falls back to per-node wrapping. Reports whether the mark was
// placed.
func liftSpans(spans []aggSpan, mark *html.Node) bool {
	if len(spans) < 2 {
		return false
	}
	first, last := spans[0], spans[len(spans)-1]
	ca := commonAncestor(first.node, last.node)
	if ca == nil {
		return false
	}
	a := childToward(ca, first.node)
	b := childToward(ca, last.node)
	if a == nil || b == nil || a == b {
		return false
	}
	if first.start > 0 && first.node.Parent != ca {
		return false
	}
	if last.end < len(last.node.Data) && last.node.Parent != ca {
		return false
	}
	ordered := false
	for n := a; n != nil; n = n.NextSibling {
		if n == b {
			ordered = true
			break
		}
	}
	if !ordered {
		return false
	}

	if first.start > 0 {
		prefix := &html.Node{Type: html.TextNode, Data: first.node.Data[:first.start]}
		first.node.Data = first.node.Data[first.start:]
		ca.InsertBefore(prefix, first.node)
	}
	if last.end < len(last.node.Data) {
		suffix := &html.Node{Type: html.TextNode, Data: last.node.Data[last.end:]}
		last.node.Data = last.node.Data[:last.end]
		if next := last.node.NextSibling; next != nil {
			ca.InsertBefore(suffix, next)
		} else {
			ca.AppendChild(suffix)
		}
	}

	ca.InsertBefore(mark, a)
	for n := a; n != nil; {
		next := n.NextSibling
		ca.RemoveChild(n)
		mark.AppendChild(n)
		if n == b {
			break
		}
		n = next
	}
	return true
}

func commonAncestor(x, y *html.Node) *html.Node {
	seen := map[*html.Node]bool{}
	for n := x; n != nil; n = n.Parent {
		seen[n] = true
	}
	for n := y; n != nil; n = n.Parent {
		if seen[n] {
			return n
		}
	}
	return nil
}

// childToward returns the direct child of ca on the path down to n.
func childToward(ca, n *html.Node) *html.Node {
	var child *html.Node
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == ca {
			return child
		}
		child = cur
	}
	return nil
}

// unwrap splices a mark's children back into its parent and drops the mark.
func unwrap(mark *html.Node) {
	parent := mark.Parent
	if parent == nil {
		return
	}
	next := mark.NextSibling
	var children []*html.Node
	for c := mark.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		mark.RemoveChild(c)
	}
	parent.RemoveChild(mark)
	for _, c := range children {
		if next != nil {
			parent.InsertBefore(c, next)
		} else {
			parent.AppendChild(c)
		}
	}
}

// normalizeText merges adjacent sibling text nodes under n, recursively.
func normalizeText(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		}
		if c.Type == html.ElementNode {
			normalizeText(c)
		}
		c = next
	}
}

// elementText returns an element's whitespace-collapsed text content.
func elementText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// pathStep is one parsed segment of a selector path.
type pathStep struct {
	tag     string
	id      string
	classes []string
	nth     int // 0 when absent
}

// parsePath parses the selector format emitted at extraction time:
// tag[#id|.cls1.cls2][:nth-of-type(n)] segments joined with " > ".
func parsePath(sel string) ([]pathStep, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, fmt.Errorf("empty selector")
	}
	var steps []pathStep
	for _, raw := range strings.Split(sel, ">") {
		seg := strings.TrimSpace(raw)
		if seg == "" {
			return nil, fmt.Errorf("malformed selector %q", sel)
		}
		var st pathStep
		if i := strings.Index(seg, ":nth-of-type("); i >= 0 {
			end := strings.Index(seg[i:], ")")
			if end < 0 {
				return nil, fmt.Errorf("malformed nth-of-type in %q", seg)
			}
			n, err := strconv.Atoi(seg[i+len(":nth-of-type(") : i+end])
			if err != nil {
				return nil, fmt.Errorf("malformed nth-of-type in %q", seg)
			}
			st.nth = n
			seg = seg[:i]
		}
		if i := strings.Index(seg, "#"); i >= 0 {
			st.tag = seg[:i]
			st.id = seg[i+1:]
		} else if i := strings.Index(seg, "."); i >= 0 {
			st.tag = seg[:i]
			st.classes = strings.Split(seg[i+1:], ".")
		} else {
			st.tag = seg
		}
		st.tag = strings.ToLower(st.tag)
		steps = append(steps, st)
	}
	return steps, nil
}

func stepMatches(n *html.Node, st pathStep) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if st.tag != "" && st.tag != "*" && strings.ToLower(n.Data) != st.tag {
		return false
	}
	if st.id != "" && attr(n, "id") != st.id {
		return false
	}
	if len(st.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		set := make(map[string]bool, len(have))
		for _, c := range have {
			set[c] = true
		}
		for _, want := range st.classes {
			if !set[want] {
				return false
			}
		}
	}
	if st.nth > 0 && nthOfType(n) != st.nth {
		return false
	}
	return true
}

func nthOfType(n *html.Node) int {
	if n.Parent == nil {
		return 1
	}
	pos := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == n.Data {
			pos++
			if c == n {
				return pos
			}
		}
	}
	return pos
}

// resolvePath finds the first element in document order whose ancestor chain
// of direct parents matches the path. The path's first segment may start
// mid-tree; only the listed segments are checked.
func resolvePath(doc *html.Node, sel string) *html.Node {
	steps, err := parsePath(sel)
	if err != nil {
		return nil
	}
	last := steps[len(steps)-1]
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if stepMatches(n, last) && chainMatches(n, steps) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func chainMatches(n *html.Node, steps []pathStep) bool {
	cur := n
	for i := len(steps) - 1; i >= 0; i-- {
		if cur == nil || !stepMatches(cur, steps[i]) {
			return false
		}
		cur = cur.Parent
	}
	return true
}
