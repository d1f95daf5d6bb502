package quality

import (
	"testing"

	"github.com/hazyhaar/darkmark/block"
)

func TestShouldKeepText(t *testing.T) {
	f := New(Config{})
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"korean date", "3월 15일", false},
		{"iso date", "2024.03.15", false},
		{"euro date", "15/03/2024", false},
		{"too short", "abc", false},
		{"mostly digits", "1234567890 12", false},
		{"mostly punctuation", "!!! ??? ... !!", false},
		{"no letters", "123 456 !!", false},
		{"single short word", "ok", false},
		{"nav label", "login", false},
		{"nav label korean", "더보기", false},
		{"bare time", "12:30", false},
		{"bare email", "a.user@example.com", false},
		{"bare url", "https://example.com/x", false},
		{"phone shaped", "02-1234-5678", false},
		{"two char token", "ab", false},
		{"short without keyword", "blue cat", false},
		{"short with discount keyword", "한정 특가", true},
		{"short with sale keyword", "big sale", true},
		{"long plain sentence", "This paragraph talks about nothing in particular at length.", true},
		{"stock widget", "코스피 2,450.31 +1.2%", false},
		{"weather widget", "기온 23도 습도 60%", false},
		{"stock word without numbers", "주식 투자에 대해 알아보자 길게 쓰인 글", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := f.ShouldKeepText(c.text); got != c.want {
				t.Errorf("ShouldKeepText(%q): got %v, want %v", c.text, got, c.want)
			}
		})
	}
}

func TestShouldKeep_TokenJoined(t *testing.T) {
	f := New(Config{})
	b := block.Block{Text: "Buy*now!*Save*10%*on*everything*today"}
	if !f.ShouldKeep(&b) {
		t.Error("token-joined promotional text should be kept")
	}
}

func TestShouldKeep_Boundary(t *testing.T) {
	f := New(Config{})
	// 3 characters: always rejected.
	if f.ShouldKeepText("abc") {
		t.Error("3-char block must be rejected")
	}
	// 4 characters, no keyword: short-block branch rejects it.
	if f.ShouldKeepText("wxyz") {
		t.Error("4-char keyword-free block must be rejected")
	}
	// Over the short-block threshold with clean text: accepted.
	if !f.ShouldKeepText("a perfectly ordinary sentence") {
		t.Error("long clean block must be accepted")
	}
}
