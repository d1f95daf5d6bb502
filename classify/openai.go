package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hazyhaar/darkmark/block"
)

const systemPrompt = `You label e-commerce and content page text blocks as dark patterns.
A dark pattern is text that manufactures urgency, hides costs, forces consent,
shames refusal, or otherwise manipulates the reader into an action.
For each numbered input block, output one JSON object with fields:
"string" (the block text verbatim), "is_darkpattern" (boolean),
"probability" (0.0-1.0), "type" (one of urgency, scarcity, misdirection,
forced-action, sneaking, social-proof, obstruction, none), and
"predicate" (one short sentence of justification).
Respond with a single JSON array and nothing else.`

// maxBatch bounds how many blocks go into one completion request; larger
// pages are classified in chunks.
const maxBatch = 40

// defaultModel is the completion model used when the caller does not pick
// one. Named by literal; the client library's model constants lag behind the
// endpoint's catalogue.
const defaultModel = "gpt-4o-mini"

// ChatClient is the slice of the OpenAI client the classifier needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelClassifier scores blocks through a chat-completion model.
type ModelClassifier struct {
	client ChatClient
	model  string
	log    *slog.Logger
}

// Option configures a ModelClassifier.
type Option func(*ModelClassifier)

// WithModel overrides the completion model name.
func WithModel(model string) Option {
	return func(c *ModelClassifier) { c.model = model }
}

// WithLogger sets the classifier's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *ModelClassifier) { c.log = l }
}

// NewModelClassifier wires a classifier to an OpenAI-compatible endpoint.
// baseURL is optional; apiKey is required by the transport, not validated
// here.
func NewModelClassifier(apiKey, baseURL string, opts ...Option) *ModelClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &ModelClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  defaultModel,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewModelClassifierWithClient injects a prebuilt client, mainly for tests.
func NewModelClassifierWithClient(client ChatClient, opts ...Option) *ModelClassifier {
	c := &ModelClassifier{client: client, model: defaultModel, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify sends the blocks to the model in batches and returns the parsed
// rows. A batch that fails or returns unparseable output is skipped with a
// warning; remaining batches still run.
func (c *ModelClassifier) Classify(ctx context.Context, blocks []block.Block) ([]Row, error) {
	var rows []Row
	for start := 0; start < len(blocks); start += maxBatch {
		end := start + maxBatch
		if end > len(blocks) {
			end = len(blocks)
		}
		batch, err := c.classifyBatch(ctx, blocks[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return rows, ctx.Err()
			}
			c.log.Warn("classification batch failed", "start", start, "err", err)
			continue
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}

func (c *ModelClassifier) classifyBatch(ctx context.Context, blocks []block.Block) ([]Row, error) {
	var sb strings.Builder
	for i := range blocks {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, textFor(&blocks[i]))
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classify: empty completion")
	}
	return parseRows(resp.Choices[0].Message.Content)
}

// parseRows extracts the JSON array from a completion, tolerating code
// fences and surrounding prose.
func parseRows(content string) ([]Row, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("classify: no JSON array in completion")
	}
	var rows []Row
	if err := json.Unmarshal([]byte(content[start:end+1]), &rows); err != nil {
		return nil, fmt.Errorf("classify: decode rows: %w", err)
	}
	return rows, nil
}
