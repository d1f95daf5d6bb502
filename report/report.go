// Package report renders a stored page and its classification results as a
// Markdown document.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/nao1215/markdown"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/severity"
	"github.com/hazyhaar/darkmark/store"
)

// Builder renders reports. It is safe for concurrent use.
type Builder struct {
	conv *converter.Converter
}

// NewBuilder creates a report builder.
func NewBuilder() *Builder {
	return &Builder{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Build writes the Markdown report for a page and its results to w.
func (b *Builder) Build(w io.Writer, page *store.Page, results []store.ModelResult) error {
	md := markdown.NewMarkdown(w)

	md.H1("Dark Pattern Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Page", "`" + page.TabURL + "`"},
			{"Title", orDash(page.TabTitle)},
			{"Collected", orDash(page.CollectedAt)},
			{"Frames", strconv.Itoa(page.FramesCollected)},
			{"Status", statusText(page)},
		},
	})
	md.PlainText("")

	b.writeSummary(md, results)
	b.writeFindings(md, results)
	b.writeSnapshot(md, page)

	md.HorizontalRule()
	md.PlainTextf("*Generated by darkmark at %s*",
		time.Now().UTC().Format("2006-01-02 15:04 MST"))
	return md.Build()
}

func statusText(page *store.Page) string {
	switch page.Status {
	case store.StatusCompleted:
		return "completed"
	case store.StatusFailed:
		return "failed: " + page.ErrorMessage
	case store.StatusProcessing:
		return fmt.Sprintf("processing (%d/%d)", page.ProgressCurrent, page.ProgressTotal)
	default:
		return page.Status
	}
}

func (b *Builder) writeSummary(md *markdown.Markdown, results []store.ModelResult) {
	md.H2("Summary")
	md.PlainText("")

	counts := map[severity.Level]int{}
	dark := 0
	for _, r := range results {
		if !r.IsDarkPattern {
			continue
		}
		dark++
		counts[severity.FromProbability(r.Probability)]++
	}

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"High", strconv.Itoa(counts[severity.High])},
			{"Mid", strconv.Itoa(counts[severity.Mid])},
			{"Low", strconv.Itoa(counts[severity.Low])},
			{"**Total dark patterns**", "**" + strconv.Itoa(dark) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case counts[severity.High] > 0:
		md.Warningf("%d high-severity dark pattern(s) detected on this page.", counts[severity.High])
	case dark > 0:
		md.Note(fmt.Sprintf("%d dark pattern(s) detected, none high severity.", dark))
	default:
		md.Tip("No dark patterns detected.")
	}
	md.PlainText("")
}

func (b *Builder) writeFindings(md *markdown.Markdown, results []store.ModelResult) {
	md.H2("Findings")
	md.PlainText("")

	var rows [][]string
	for _, r := range results {
		if !r.IsDarkPattern {
			continue
		}
		text := r.TranslatedText
		if text == "" {
			text = r.Text
		}
		rows = append(rows, []string{
			truncate(text, 60),
			orDash(r.Type),
			fmt.Sprintf("%.0f%%", normalizeProbability(r.Probability)*100),
			severity.FromProbability(r.Probability).String(),
		})
	}
	if len(rows) == 0 {
		md.PlainText("No dark patterns found.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Text", "Type", "Probability", "Severity"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (b *Builder) writeSnapshot(md *markdown.Markdown, page *store.Page) {
	md.H2("Page Snapshot")
	md.PlainText("")

	if page.SnapshotHTML != "" {
		converted, err := b.conv.ConvertString(page.SnapshotHTML,
			converter.WithDomain(page.TabURL))
		if err == nil && strings.TrimSpace(converted) != "" {
			md.PlainText(strings.TrimSpace(converted))
			md.PlainText("")
			return
		}
	}

	// No snapshot: fall back to the flattened collected text.
	parts := strings.Split(page.FullText, block.BlockDelim)
	var lines []string
	for _, p := range parts {
		if plain := block.Plain(p); plain != "" {
			lines = append(lines, plain)
		}
	}
	if len(lines) == 0 {
		md.PlainText("No content captured.")
		md.PlainText("")
		return
	}
	md.BulletList(lines...)
	md.PlainText("")
}

func normalizeProbability(p float64) float64 {
	if p > 1 {
		return p / 100
	}
	return p
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
