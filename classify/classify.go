// Package classify scores extracted blocks for dark-pattern likelihood.
// The production path talks to an OpenAI-compatible chat endpoint; a
// rule-based classifier serves offline runs and tests.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/darkmark/block"
)

// Row is one classification result, keyed back to its source block by the
// original text.
type Row struct {
	Text          string   `json:"string"`
	Translated    string   `json:"translatedString,omitempty"`
	IsDarkPattern FlexBool `json:"is_darkpattern"`
	Probability   float64  `json:"probability"`
	Type          string   `json:"type,omitempty"`
	Predicate     string   `json:"predicate,omitempty"`
}

// FlexBool decodes the model's inconsistent boolean encodings: true/false,
// 1/0, and their string forms.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1", `"true"`, `"1"`:
		*f = true
		return nil
	case "false", "0", `"false"`, `"0"`, "null":
		*f = false
		return nil
	}
	// Some responses carry floats like 1.0.
	if n, err := strconv.ParseFloat(strings.Trim(string(data), `"`), 64); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("classify: cannot decode boolean %q", data)
}

func (f FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

// Classifier scores a batch of blocks. Implementations must return at most
// one row per block and may omit blocks they judge clean.
type Classifier interface {
	Classify(ctx context.Context, blocks []block.Block) ([]Row, error)
}

// textFor returns the text a classifier should analyze: the translated
// form when present, the plain text otherwise.
func textFor(b *block.Block) string {
	if b.TranslatedPlainText != "" {
		return b.TranslatedPlainText
	}
	return b.PlainText
}
