// Package visibility decides whether a DOM element may ever contribute
// visible text. The answer is a pure function of the parsed node: callers
// must re-evaluate against the current tree, never cache across mutations.
package visibility

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// excludedTags never contribute text, regardless of styling.
var excludedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Canvas:   true,
	atom.Code:     true,
	atom.Pre:      true,
	atom.Kbd:      true,
	atom.Samp:     true,
	atom.Textarea: true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Button:   true,
	atom.Label:    true,
	atom.Form:     true,
	atom.Nav:      true,
	atom.Menu:     true,
}

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(\s*;|\s*$|[^.\d])`),
}

var zeroSizeStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwidth\s*:\s*0(px|%)?(\s*;|\s*$)`),
	regexp.MustCompile(`(?i)\bheight\s*:\s*0(px|%)?(\s*;|\s*$)`),
}

// IsExcludedTag reports whether the element's tag is in the fixed exclusion
// set (script/style/form controls/navigation chrome).
func IsExcludedTag(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return excludedTags[n.DataAtom]
}

// IsVisible reports whether an element may contribute text. An element is
// invisible if its tag is excluded, its inline style hides it, it carries
// hidden/aria-hidden, or its declared box has zero area.
func IsVisible(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if excludedTags[n.DataAtom] {
		return false
	}

	style := ""
	for _, a := range n.Attr {
		switch a.Key {
		case "style":
			style = a.Val
		case "hidden":
			return false
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(a.Val), "true") {
				return false
			}
		}
	}

	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return false
		}
	}

	// A parsed tree has no layout. The rendered-box rule degrades to declared
	// dimensions: zero only counts when both axes are declared zero.
	if declaredZero(n, style, "width") && declaredZero(n, style, "height") {
		return false
	}

	return true
}

// declaredZero reports whether the given dimension is explicitly declared as
// zero, either via an HTML attribute or the inline style.
func declaredZero(n *html.Node, style, dim string) bool {
	for _, a := range n.Attr {
		if a.Key != dim {
			continue
		}
		v := strings.TrimSuffix(strings.TrimSpace(a.Val), "px")
		if f, err := strconv.ParseFloat(v, 64); err == nil && f <= 0 {
			return true
		}
	}
	var pat *regexp.Regexp
	if dim == "width" {
		pat = zeroSizeStylePatterns[0]
	} else {
		pat = zeroSizeStylePatterns[1]
	}
	return pat.MatchString(style)
}
