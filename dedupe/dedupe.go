// Package dedupe removes duplicate blocks and tokens via canonical keys.
//
// The same key function serves both dedupe passes: pass 1 runs per scope
// right after collection (bounding the data volume crossing the scope
// boundary), pass 2 runs once over the union of all scopes after merge.
// Boilerplate repeated inline within one container or identically across
// frames collapses at the matching level.
package dedupe

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/hazyhaar/darkmark/block"
)

// NormalizeText canonicalises text for duplicate detection: NFKC, lowercase,
// every non-alphanumeric run collapsed to a single space, trimmed.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	var sb strings.Builder
	sb.Grow(len(s))
	inGap := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if inGap && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			inGap = false
			sb.WriteRune(r)
		} else {
			inGap = true
		}
	}
	return sb.String()
}

// TokenKey returns the degenerate canonical key for a bare token: the
// normalized text with a string marker. Empty text yields an empty key.
func TokenKey(tok string) string {
	n := NormalizeText(tok)
	if n == "" {
		return ""
	}
	return "text|" + n
}

// BlockKey returns the canonical key for a structured block: the ordered
// join of its semantically distinguishing fields plus normalized text,
// with an object marker. A block with no normalizable text yields an empty
// key and is treated as a duplicate of nothing (dropped).
func BlockKey(b *block.Block) string {
	n := NormalizeText(b.Text)
	if n == "" {
		return ""
	}
	frameID := ""
	if b.FrameID != nil {
		frameID = strconv.Itoa(*b.FrameID)
	}
	return strings.Join([]string{
		"obj",
		strings.ToLower(b.Tag),
		strings.ToLower(b.Selector),
		strings.ToLower(string(b.BlockType)),
		strconv.Itoa(b.FrameBlockIndex),
		frameID,
		strings.ToLower(b.FrameURL),
		strings.ToLower(b.LinkSelector),
		strings.ToLower(b.LinkHref),
		n,
	}, "|")
}

// Tokens deduplicates a token list, first occurrence wins, order preserved.
// Tokens with empty canonical keys are dropped unconditionally.
func Tokens(toks []string) []string {
	seen := make(map[string]struct{}, len(toks))
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		k := TokenKey(t)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Blocks deduplicates a block list, first occurrence wins, order preserved.
func Blocks(blocks []block.Block) []block.Block {
	seen := make(map[string]struct{}, len(blocks))
	out := make([]block.Block, 0, len(blocks))
	for i := range blocks {
		k := BlockKey(&blocks[i])
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, blocks[i])
	}
	return out
}

// WithinBlock deduplicates the tokens inside one block's Text in place,
// preserving RawText/RawPlainText as the pre-dedupe originals. Raw fields
// are set once and never overwritten on subsequent passes, so the operation
// is idempotent.
func WithinBlock(b *block.Block) {
	if b == nil || b.Text == "" {
		return
	}
	toks := strings.Split(b.Text, block.TokenDelim)
	trimmed := make([]string, 0, len(toks))
	for _, t := range toks {
		t = strings.TrimSpace(t)
		if t != "" {
			trimmed = append(trimmed, t)
		}
	}
	joined := strings.Join(Tokens(trimmed), block.TokenDelim)
	if b.RawText == "" {
		b.RawText = b.Text
	}
	if b.RawPlainText == "" {
		b.RawPlainText = b.PlainText
	}
	b.SetText(joined)
}
