package locate

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// gapClass tolerates whitespace, zero-width characters, and punctuation the
// renderer may inject between the characters of previously extracted text.
const gapClass = `[\s\x{200B}\x{200C}\x{FEFF}\x{00A0}\W]*`

// maxLooseQueryRunes bounds loose pattern size; longer queries fall through
// to the aggregate and segment strategies.
const maxLooseQueryRunes = 600

// looseRegex compiles the per-character fuzzy matcher for a query. Matching
// is case-insensitive; translation round-trips routinely change casing.
// Returns nil for queries that are empty, too long, or uncompilable.
func looseRegex(query string) *regexp.Regexp {
	var parts []string
	for _, r := range query {
		if isStrippable(r) {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	if len(parts) == 0 || len(parts) > maxLooseQueryRunes {
		return nil
	}
	re, err := regexp.Compile("(?i)" + strings.Join(parts, gapClass))
	if err != nil {
		return nil
	}
	return re
}

// isStrippable reports whether a rune is ignored during matching: ordinary
// whitespace plus the zero-width and non-breaking space family.
func isStrippable(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v', '\u200B', '\u200C', '\uFEFF', '\u00A0':
		return true
	}
	return false
}

var tokenRe = regexp.MustCompile(`[a-z0-9가-힣]+`)

// tokenize lowercases and extracts alphanumeric and Hangul runs.
func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// overlapScore rates how well an ancestor's text matches the query:
// 0.7 coverage (query tokens present) + 0.2 density (ancestor tokens that
// are query tokens) + 0.1 size similarity.
func overlapScore(query, ancestorText string) float64 {
	qt := tokenize(query)
	at := tokenize(ancestorText)
	if len(qt) == 0 || len(at) == 0 {
		return 0
	}
	aset := make(map[string]bool, len(at))
	for _, t := range at {
		aset[t] = true
	}
	qset := make(map[string]bool, len(qt))
	for _, t := range qt {
		qset[t] = true
	}
	covered := 0
	for t := range qset {
		if aset[t] {
			covered++
		}
	}
	dense := 0
	for t := range aset {
		if qset[t] {
			dense++
		}
	}
	coverage := float64(covered) / float64(len(qset))
	density := float64(dense) / float64(len(aset))
	diff := len(qt) - len(at)
	if diff < 0 {
		diff = -diff
	}
	sizeSim := 1.0 / float64(1+diff)
	return 0.7*coverage + 0.2*density + 0.1*sizeSim
}

const (
	ancestorClimb  = 6
	ancestorMinLen = 10
	ancestorMaxLen = 1200
)

// meaningfulAncestor picks the context element a text match is scored
// against: the first ancestor within six levels whose trimmed text length is
// in [10,1200], else the first with any text, else the direct parent.
func meaningfulAncestor(n *html.Node) *html.Node {
	parent := n.Parent
	var withText *html.Node
	cur := parent
	for i := 0; i < ancestorClimb && cur != nil && cur.Type == html.ElementNode; i++ {
		text := elementText(cur)
		l := len([]rune(text))
		if l >= ancestorMinLen && l <= ancestorMaxLen {
			return cur
		}
		if withText == nil && l > 0 {
			withText = cur
		}
		cur = cur.Parent
	}
	if withText != nil {
		return withText
	}
	return parent
}

// nodeMatch is one loose-regex hit inside a single text node.
type nodeMatch struct {
	node       *html.Node
	start, end int
	score      float64
	lenDiff    int
}

// bestNodeMatch runs the loose matcher over every text node and returns the
// highest-scoring match, or nil.
func bestNodeMatch(nodes []*html.Node, re *regexp.Regexp, query string) *nodeMatch {
	var best *nodeMatch
	qlen := len([]rune(query))
	for _, n := range nodes {
		loc := re.FindStringIndex(n.Data)
		if loc == nil {
			continue
		}
		anc := meaningfulAncestor(n)
		ancText := ""
		if anc != nil {
			ancText = elementText(anc)
		}
		m := &nodeMatch{
			node:  n,
			start: loc[0],
			end:   loc[1],
			score: overlapScore(query, ancText),
		}
		m.lenDiff = len([]rune(ancText)) - qlen
		if m.lenDiff < 0 {
			m.lenDiff = -m.lenDiff
		}
		if best == nil || m.score > best.score ||
			(m.score == best.score && m.lenDiff < best.lenDiff) {
			best = m
		}
	}
	return best
}

// aggChar maps one retained character of the aggregate buffer back to its
// source text node and byte offset.
type aggChar struct {
	node  *html.Node
	start int // byte offset of the rune in node.Data
	end   int // byte offset just past the rune
}

// aggregate builds the cross-node search buffer: every non-strippable rune
// of every text node, lowercased, with a per-rune index back into the tree.
// The index preserves the original byte offsets, so wrapped text keeps the
// document's casing.
func aggregate(nodes []*html.Node) (string, []aggChar) {
	var sb strings.Builder
	var idx []aggChar
	for _, n := range nodes {
		for off, r := range n.Data {
			if isStrippable(r) {
				continue
			}
			sb.WriteRune(unicode.ToLower(r))
			idx = append(idx, aggChar{node: n, start: off, end: off + len(string(r))})
		}
	}
	return sb.String(), idx
}

// stripQuery removes strippable runes and lowercases the rest so the query
// aligns with the aggregate buffer.
func stripQuery(q string) string {
	var sb strings.Builder
	for _, r := range q {
		if !isStrippable(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}

// aggSpan is a resolved cross-node match: a contiguous byte range per
// touched text node, in document order.
type aggSpan struct {
	node       *html.Node
	start, end int
}

// findAggregate searches the stripped query in the aggregate buffer and maps
// the hit back to per-node byte ranges.
func findAggregate(buf string, idx []aggChar, query string) []aggSpan {
	q := stripQuery(query)
	if q == "" {
		return nil
	}
	pos := strings.Index(buf, q)
	if pos < 0 {
		return nil
	}
	// Convert byte positions in buf to rune indices into idx.
	runeStart := len([]rune(buf[:pos]))
	runeEnd := runeStart + len([]rune(q))
	var spans []aggSpan
	for i := runeStart; i < runeEnd; i++ {
		ch := idx[i]
		if len(spans) > 0 && spans[len(spans)-1].node == ch.node {
			spans[len(spans)-1].end = ch.end
			continue
		}
		spans = append(spans, aggSpan{node: ch.node, start: ch.start, end: ch.end})
	}
	return spans
}
