package classify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hazyhaar/darkmark/block"
)

func TestFlexBool(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`"1"`, true},
		{`"0"`, false},
		{`1.0`, true},
		{`null`, false},
	}
	for _, c := range cases {
		var f FlexBool
		if err := json.Unmarshal([]byte(c.in), &f); err != nil {
			t.Errorf("unmarshal %s: %v", c.in, err)
			continue
		}
		if bool(f) != c.want {
			t.Errorf("FlexBool(%s): got %v, want %v", c.in, f, c.want)
		}
	}
}

func TestParseRows_ToleratesFences(t *testing.T) {
	content := "Here are the results:\n```json\n[{\"string\":\"Only 3 left!\",\"is_darkpattern\":1,\"probability\":90,\"type\":\"scarcity\"}]\n```"
	rows, err := parseRows(content)
	if err != nil {
		t.Fatalf("parseRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if !bool(rows[0].IsDarkPattern) || rows[0].Type != "scarcity" {
		t.Errorf("row malformed: %+v", rows[0])
	}
	if rows[0].Probability != 90 {
		t.Errorf("probability should pass through unscaled: %v", rows[0].Probability)
	}
}

type fakeChat struct {
	content string
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.content},
		}},
	}, nil
}

func TestModelClassifier_PrefersTranslatedText(t *testing.T) {
	fake := &fakeChat{content: `[]`}
	c := NewModelClassifierWithClient(fake)
	blocks := []block.Block{{
		PlainText:           "한정 특가",
		TranslatedPlainText: "limited special offer",
	}}
	if _, err := c.Classify(context.Background(), blocks); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	user := fake.lastReq.Messages[len(fake.lastReq.Messages)-1].Content
	if want := "limited special offer"; !strings.Contains(user, want) {
		t.Errorf("prompt should carry translated text, got %q", user)
	}
}

func TestModelClassifier_DefaultModel(t *testing.T) {
	c := NewModelClassifierWithClient(&fakeChat{content: `[]`})
	if c.model != "gpt-4o-mini" {
		t.Errorf("default model = %q", c.model)
	}
	c = NewModelClassifierWithClient(&fakeChat{content: `[]`}, WithModel("gpt-4.1"))
	if c.model != "gpt-4.1" {
		t.Errorf("WithModel override = %q", c.model)
	}
}

func TestRuleClassifier(t *testing.T) {
	blocks := []block.Block{
		{PlainText: "Only 3 left in stock, order now"},
		{PlainText: "a perfectly neutral paragraph about gardening"},
		{PlainText: "Limited time offer ends today"},
	}
	rows, err := RuleClassifier{}.Classify(context.Background(), blocks)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Type != "scarcity" || rows[1].Type != "urgency" {
		t.Errorf("types: %q, %q", rows[0].Type, rows[1].Type)
	}
	for _, r := range rows {
		if !bool(r.IsDarkPattern) || r.Probability <= 0 {
			t.Errorf("row malformed: %+v", r)
		}
	}
}
