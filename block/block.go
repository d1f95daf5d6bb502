// Package block defines the extraction data model shared by the collector,
// deduplicator, quality filter, and scanner.
//
// A Block carries its text twice: Text is the token-joined canonical form
// (words separated by the reserved TokenDelim, which survives channels that
// strip whitespace), PlainText is the human-readable space-joined form.
// RawText/RawPlainText preserve the pre-dedupe originals for audit and
// highlighting; OriginalText preserves the pre-translation form.
package block

import "strings"

const (
	// TokenDelim separates words inside a block's Text.
	TokenDelim = "*"
	// BlockDelim separates blocks in the legacy flattened text channel.
	// Block text never contains this character.
	BlockDelim = "#"
)

// Type classifies how a block was produced.
type Type string

const (
	TypeTitle    Type = "title"    // synthetic block from page title metadata
	TypeContent  Type = "content"  // leaf block-like element
	TypeFallback Type = "fallback" // whole-body fallback when no leaves exist
	TypeLegacy   Type = "legacy"   // reconstructed from a flattened text channel
)

// Block is one unit of extracted page text with structural metadata.
type Block struct {
	Index               int    `json:"index"`
	Text                string `json:"text"`
	PlainText           string `json:"plainText"`
	RawText             string `json:"rawText"`
	RawPlainText        string `json:"rawPlainText"`
	OriginalText        string `json:"originalText,omitempty"`
	OriginalPlainText   string `json:"originalPlainText,omitempty"`
	TranslatedPlainText string `json:"translatedPlainText,omitempty"`
	Translated          bool   `json:"translated"`
	Selector            string `json:"selector"`
	Tag                 string `json:"tag"`
	BlockType           Type   `json:"blockType"`
	FrameURL            string `json:"frameUrl"`
	FrameTitle          string `json:"frameTitle"`
	FrameID             *int   `json:"frameId"`
	FrameBlockIndex     int    `json:"frameBlockIndex"`
	LinkHref            string `json:"linkHref,omitempty"`
	LinkSelector        string `json:"linkSelector,omitempty"`
}

// Scope is one document context (main page or one same-origin frame) from
// which blocks were independently collected.
type Scope struct {
	FrameURL string  `json:"frameUrl"`
	Title    string  `json:"title"`
	FrameID  *int    `json:"frameId"`
	Blocks   []Block `json:"blocks"`
}

// Text returns the legacy flattened form: block texts joined by BlockDelim.
func (s *Scope) Text() string {
	parts := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, BlockDelim)
}

// ToTokens converts plain text to the token-joined form. Reserved delimiter
// characters inside words are flattened to spaces first so the invariant
// (Text never contains BlockDelim) holds.
func ToTokens(plain string) string {
	plain = strings.ReplaceAll(plain, TokenDelim, " ")
	plain = strings.ReplaceAll(plain, BlockDelim, " ")
	return strings.Join(strings.Fields(plain), TokenDelim)
}

// Plain converts token-joined text back to the space-joined readable form.
func Plain(tokens string) string {
	return strings.Join(strings.FieldsFunc(tokens, func(r rune) bool {
		return r == '*' || r == ' '
	}), " ")
}

// SetText updates Text and PlainText together from a token-joined value.
func (b *Block) SetText(tokens string) {
	b.Text = tokens
	b.PlainText = Plain(tokens)
}
