package collect

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DefaultPathDepth bounds how many ancestors a selector path encodes.
const DefaultPathDepth = 8

// DomPath builds a short CSS-style path for an element: up to depth segments
// of tag[#id|.classes][:nth-of-type(n)] joined with " > ", innermost last.
// The walk stops at the first ancestor carrying an id, since an id segment
// anchors the path on its own.
func DomPath(el *html.Node, depth int) string {
	if depth <= 0 {
		depth = DefaultPathDepth
	}
	var parts []string
	for n := el; n != nil && n.Type == html.ElementNode && len(parts) < depth; n = n.Parent {
		tag := strings.ToLower(n.Data)
		if tag == "html" || tag == "body" {
			parts = append(parts, tag)
			break
		}
		part := tag
		if id := strings.TrimSpace(attr(n, "id")); id != "" {
			parts = append(parts, part+"#"+id)
			break
		}
		if cls := classSuffix(n); cls != "" {
			part += "." + cls
		}
		if pos, total := typePosition(n); total > 1 {
			part += fmt.Sprintf(":nth-of-type(%d)", pos)
		}
		parts = append(parts, part)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// classSuffix joins the element's first two class names with a dot.
func classSuffix(n *html.Node) string {
	classes := strings.Fields(attr(n, "class"))
	if len(classes) == 0 {
		return ""
	}
	if len(classes) > 2 {
		classes = classes[:2]
	}
	return strings.Join(classes, ".")
}

// typePosition returns the element's 1-based position among same-tag element
// siblings and the total count of those siblings.
func typePosition(n *html.Node) (pos, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			pos = total
		}
	}
	if total == 0 {
		return 1, 1
	}
	return pos, total
}
