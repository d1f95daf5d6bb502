package dedupe

import (
	"reflect"
	"testing"

	"github.com/hazyhaar/darkmark/block"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello,   World!", "hello world"},
		{"Hello World", "hello world"},
		{"  HELLO\tworld  ", "hello world"},
		{"한정 특가!!", "한정 특가"},
		{"ｆｕｌｌｗｉｄｔｈ", "fullwidth"}, // NFKC folds fullwidth forms
		{"...", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.want {
			t.Errorf("NormalizeText(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBlockKey_Stability(t *testing.T) {
	a := block.Block{Tag: "p", Selector: "div > p", BlockType: block.TypeContent, Text: "Buy  Now!"}
	b := block.Block{Tag: "p", Selector: "div > p", BlockType: block.TypeContent, Text: "buy now"}
	if BlockKey(&a) != BlockKey(&b) {
		t.Errorf("keys should match for case/whitespace variants:\n%q\n%q", BlockKey(&a), BlockKey(&b))
	}
}

func TestBlockKey_FrameIdentity(t *testing.T) {
	one, two := 1, 2
	a := block.Block{Tag: "div", Selector: "div:nth-of-type(1)", Text: "a*b", FrameURL: "https://a.example/", FrameID: &one}
	b := block.Block{Tag: "div", Selector: "div:nth-of-type(1)", Text: "a*b", FrameURL: "https://b.example/", FrameID: &two}
	if BlockKey(&a) == BlockKey(&b) {
		t.Error("blocks in distinct frames must not share a canonical key")
	}
	c := a
	if BlockKey(&a) != BlockKey(&c) {
		t.Error("identical blocks must share a canonical key")
	}
}

func TestBlocks_Idempotent(t *testing.T) {
	in := []block.Block{
		{Tag: "p", Text: "hello*world"},
		{Tag: "p", Text: "Hello World"},
		{Tag: "p", Text: "other"},
		{Tag: "p", Text: ""},
	}
	once := Blocks(in)
	twice := Blocks(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedupe not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if len(once) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %+v", len(once), once)
	}
	if once[0].Text != "hello*world" {
		t.Errorf("first occurrence should win, got %q", once[0].Text)
	}
}

func TestTokens_OrderPreserving(t *testing.T) {
	got := Tokens([]string{"b", "a", "B", "c", "a", ""})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens: got %v, want %v", got, want)
	}
}

func TestWithinBlock(t *testing.T) {
	b := block.Block{Text: "free*shipping*free*today", PlainText: "free shipping free today"}
	WithinBlock(&b)
	if b.Text != "free*shipping*today" {
		t.Errorf("Text: got %q", b.Text)
	}
	if b.PlainText != "free shipping today" {
		t.Errorf("PlainText: got %q", b.PlainText)
	}
	if b.RawText != "free*shipping*free*today" {
		t.Errorf("RawText should hold pre-dedupe original, got %q", b.RawText)
	}

	// A second pass must not disturb the raw fields.
	WithinBlock(&b)
	if b.RawText != "free*shipping*free*today" || b.Text != "free*shipping*today" {
		t.Errorf("second pass not idempotent: raw=%q text=%q", b.RawText, b.Text)
	}
}
