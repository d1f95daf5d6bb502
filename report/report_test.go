package report

import (
	"strings"
	"testing"

	"github.com/hazyhaar/darkmark/store"
)

func samplePage() *store.Page {
	return &store.Page{
		ID:              "doc_1",
		TabURL:          "https://shop.example/deal",
		TabTitle:        "Big Deal",
		CollectedAt:     "2026-08-31T10:00:00Z",
		FramesCollected: 1,
		FullText:        "Only*3*left#Hurry*up",
		Status:          store.StatusCompleted,
	}
}

func TestBuild_Findings(t *testing.T) {
	var sb strings.Builder
	err := NewBuilder().Build(&sb, samplePage(), []store.ModelResult{
		{BlockIndex: 0, Text: "Only 3 left", IsDarkPattern: true, Probability: 0.9, Type: "scarcity"},
		{BlockIndex: 1, Text: "Contact us", IsDarkPattern: false, Probability: 0.1},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out := sb.String()
	for _, want := range []string{
		"# Dark Pattern Report",
		"https://shop.example/deal",
		"Only 3 left",
		"scarcity",
		"high",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Contact us") {
		t.Errorf("clean blocks should not appear as findings:\n%s", out)
	}
}

func TestBuild_SnapshotConversion(t *testing.T) {
	page := samplePage()
	page.SnapshotHTML = "<h2>Deal of the day</h2><p>Act <strong>now</strong></p>"

	var sb strings.Builder
	if err := NewBuilder().Build(&sb, page, nil); err != nil {
		t.Fatal(err)
	}

	out := sb.String()
	if !strings.Contains(out, "Deal of the day") {
		t.Errorf("snapshot content missing:\n%s", out)
	}
	if strings.Contains(out, "<h2>") {
		t.Errorf("snapshot should be converted to markdown:\n%s", out)
	}
}

func TestBuild_FallbackToFlattenedText(t *testing.T) {
	var sb strings.Builder
	if err := NewBuilder().Build(&sb, samplePage(), nil); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.Contains(out, "Only 3 left") || !strings.Contains(out, "Hurry up") {
		t.Errorf("flattened text fallback missing:\n%s", out)
	}
	if !strings.Contains(out, "No dark patterns found.") {
		t.Errorf("empty results section missing:\n%s", out)
	}
}
