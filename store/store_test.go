package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/dbopen"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return New(db)
}

func sampleSubmission() *Submission {
	frameID := 0
	return &Submission{
		TabURL:          "https://shop.example/deal",
		TabTitle:        "Big Deal",
		CollectedAt:     "2026-08-31T10:00:00Z",
		FramesCollected: 1,
		FullText:        "Only*3*left#Hurry*up",
		OriginalText:    "재고*3개#서두르세요",
		Frames:          []string{"Only*3*left#Hurry*up"},
		FrameMetadata:   []FrameMeta{{URL: "https://shop.example/deal", Title: "Big Deal", FrameID: &frameID}},
		StructuredBlocks: []block.Block{
			{Index: 0, Text: "Only*3*left", PlainText: "Only 3 left", Selector: "div#stock", Tag: "div", BlockType: block.TypeContent},
			{Index: 1, Text: "Hurry*up", PlainText: "Hurry up", Selector: "p.cta", Tag: "p", BlockType: block.TypeContent},
		},
	}
}

func TestInsertSubmission_RoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.InsertSubmission(ctx, sampleSubmission())
	if err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}
	if !strings.HasPrefix(id, "doc_") {
		t.Errorf("page id should carry doc_ prefix: %q", id)
	}

	p, err := s.PageByID(ctx, id)
	if err != nil {
		t.Fatalf("PageByID: %v", err)
	}
	if p.TabURL != "https://shop.example/deal" || p.Status != StatusPending {
		t.Errorf("unexpected page: %+v", p)
	}
	if len(p.FrameMetadata) != 1 || p.FrameMetadata[0].FrameID == nil {
		t.Errorf("frame metadata lost: %+v", p.FrameMetadata)
	}

	blocks, err := s.PageBlocks(ctx, id)
	if err != nil {
		t.Fatalf("PageBlocks: %v", err)
	}
	if len(blocks) != 2 || blocks[0].PlainText != "Only 3 left" {
		t.Errorf("blocks round trip: %+v", blocks)
	}
}

func TestInsertSubmission_RequiresTabURL(t *testing.T) {
	s := openStore(t)
	if _, err := s.InsertSubmission(context.Background(), &Submission{}); err == nil {
		t.Fatal("expected error for missing tabUrl")
	}
}

func TestInsertSubmission_SanitizesSnapshot(t *testing.T) {
	s := openStore(t)
	sub := sampleSubmission()
	sub.SnapshotHTML = `<p>ok</p><script>alert(1)</script>`

	id, err := s.InsertSubmission(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.PageByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(p.SnapshotHTML, "<script>") {
		t.Errorf("snapshot should be sanitized: %q", p.SnapshotHTML)
	}
	if !strings.Contains(p.SnapshotHTML, "<p>ok</p>") {
		t.Errorf("safe markup should survive: %q", p.SnapshotHTML)
	}
}

func TestLatestQueries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := sampleSubmission()
	if _, err := s.InsertSubmission(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := sampleSubmission()
	second.TabURL = "https://other.example/"
	secondID, err := s.InsertSubmission(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	// created_at has millisecond resolution; force a strict ordering.
	if _, err := s.DB.Exec(
		`UPDATE pages SET created_at = created_at + 1 WHERE id = ?`, secondID); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestPage(ctx)
	if err != nil {
		t.Fatalf("LatestPage: %v", err)
	}
	if latest.ID != secondID {
		t.Errorf("LatestPage: got %s, want %s", latest.ID, secondID)
	}

	byURL, err := s.LatestPageByTabURL(ctx, "https://shop.example/deal")
	if err != nil {
		t.Fatalf("LatestPageByTabURL: %v", err)
	}
	if byURL.TabURL != "https://shop.example/deal" {
		t.Errorf("wrong page by url: %+v", byURL)
	}

	if _, err := s.LatestPageByTabURL(ctx, "https://unknown.example/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown url should be ErrNotFound, got %v", err)
	}
}

func TestProgressLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.InsertSubmission(ctx, sampleSubmission())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetStatus(ctx, id, StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProgress(ctx, id, 1, 2); err != nil {
		t.Fatal(err)
	}
	p, err := s.PageByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusProcessing || p.ProgressCurrent != 1 || p.ProgressTotal != 2 {
		t.Errorf("mid-run state: %+v", p)
	}

	if err := s.MarkCompleted(ctx, id); err != nil {
		t.Fatal(err)
	}
	p, err = s.PageByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusCompleted || p.CompletedAt == nil {
		t.Errorf("completed state: %+v", p)
	}

	if err := s.MarkFailed(ctx, id, "model unreachable"); err != nil {
		t.Fatal(err)
	}
	p, err = s.PageByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusFailed || p.ErrorMessage != "model unreachable" {
		t.Errorf("failed state: %+v", p)
	}
}

func TestModelResults(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.InsertSubmission(ctx, sampleSubmission())
	if err != nil {
		t.Fatal(err)
	}

	rows := []ModelResult{
		{BlockIndex: 0, Text: "Only 3 left", IsDarkPattern: true, Probability: 0.9, Type: "scarcity"},
		{BlockIndex: 1, Text: "Hurry up", IsDarkPattern: true, Probability: 0.8, Type: "urgency"},
		{BlockIndex: 2, Text: "Contact us", IsDarkPattern: false, Probability: 0.1},
	}
	if err := s.InsertModelResults(ctx, id, rows); err != nil {
		t.Fatalf("InsertModelResults: %v", err)
	}

	got, err := s.ModelResults(ctx, id)
	if err != nil {
		t.Fatalf("ModelResults: %v", err)
	}
	if len(got) != 3 || got[0].Type != "scarcity" || !got[1].IsDarkPattern {
		t.Errorf("results round trip: %+v", got)
	}

	sum, err := s.ModelSummary(ctx, id)
	if err != nil {
		t.Fatalf("ModelSummary: %v", err)
	}
	if sum.Total != 3 || sum.Dark != 2 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.Percent < 66 || sum.Percent > 67 {
		t.Errorf("percent: %v", sum.Percent)
	}
}

func TestAppendModelResult_Upserts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.InsertSubmission(ctx, sampleSubmission())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.AppendModelResult(ctx, id, ModelResult{BlockIndex: 0, Text: "x", Probability: 0.2}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendModelResult(ctx, id, ModelResult{BlockIndex: 0, Text: "x", IsDarkPattern: true, Probability: 0.9, Type: "urgency"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ModelResults(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].IsDarkPattern || got[0].Type != "urgency" {
		t.Errorf("upsert should replace the row: %+v", got)
	}
}
