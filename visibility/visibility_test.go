package visibility

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// firstElement parses a fragment and returns the first element matching tag.
func firstElement(t *testing.T, fragment, tag string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if found == nil {
		t.Fatalf("no <%s> in %q", tag, fragment)
	}
	return found
}

func TestIsVisible(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		tag      string
		want     bool
	}{
		{"plain div", `<div>hello</div>`, "div", true},
		{"display none", `<div style="display:none">x</div>`, "div", false},
		{"display none spaced", `<div style="display : NONE">x</div>`, "div", false},
		{"visibility hidden", `<p style="visibility:hidden">x</p>`, "p", false},
		{"opacity zero", `<p style="opacity:0">x</p>`, "p", false},
		{"opacity fractional", `<p style="opacity:0.5">x</p>`, "p", true},
		{"hidden attribute", `<div hidden>x</div>`, "div", false},
		{"aria-hidden", `<div aria-hidden="true">x</div>`, "div", false},
		{"aria-hidden false", `<div aria-hidden="false">x</div>`, "div", true},
		{"script excluded", `<script>x</script>`, "script", false},
		{"nav excluded", `<nav>links</nav>`, "nav", false},
		{"button excluded", `<button>go</button>`, "button", false},
		{"zero box attrs", `<div width="0" height="0">x</div>`, "div", false},
		{"zero width only", `<div width="0">x</div>`, "div", true},
		{"zero box style", `<div style="width:0;height:0">x</div>`, "div", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := firstElement(t, c.fragment, c.tag)
			if got := IsVisible(n); got != c.want {
				t.Errorf("IsVisible: got %v, want %v", got, c.want)
			}
		})
	}
}

func TestIsVisible_NonElement(t *testing.T) {
	if IsVisible(nil) {
		t.Error("nil node should not be visible")
	}
	text := &html.Node{Type: html.TextNode, Data: "hello"}
	if IsVisible(text) {
		t.Error("text node should not be visible as an element")
	}
}
