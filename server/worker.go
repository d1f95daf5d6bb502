package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/classify"
	"github.com/hazyhaar/darkmark/observability"
	"github.com/hazyhaar/darkmark/store"
	"github.com/hazyhaar/darkmark/vtq"
)

type jobPayload struct {
	PageID string `json:"pageId"`
}

// Worker consumes modeling jobs: it classifies each block of a stored page
// and records results and progress as it goes.
type Worker struct {
	store      *store.Store
	queue      *vtq.Q
	classifier classify.Classifier
	events     *observability.EventLogger
	heartbeat  *observability.HeartbeatWriter
	log        *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerEventLogger wires business event logging.
func WithWorkerEventLogger(l *observability.EventLogger) WorkerOption {
	return func(w *Worker) { w.events = l }
}

// WithHeartbeat wires a liveness probe writer.
func WithHeartbeat(hw *observability.HeartbeatWriter) WorkerOption {
	return func(w *Worker) { w.heartbeat = hw }
}

// WithWorkerLogger overrides the default logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.log = l }
}

// NewWorker creates the enrichment worker.
func NewWorker(st *store.Store, queue *vtq.Q, c classify.Classifier, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:      st,
		queue:      queue,
		classifier: c,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run blocks consuming modeling jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w.heartbeat != nil {
		w.heartbeat.Start(ctx)
	}
	w.queue.Run(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, job *vtq.Job) error {
	var p jobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		// Undecodable payloads can never succeed; ack and move on.
		w.log.Warn("worker: bad job payload", "id", job.ID, "error", err)
		return nil
	}
	return w.Process(ctx, p.PageID)
}

// Process runs the full modeling pass for one stored page.
func (w *Worker) Process(ctx context.Context, pageID string) error {
	page, err := w.store.PageByID(ctx, pageID)
	if errors.Is(err, store.ErrNotFound) {
		w.log.Warn("worker: page vanished", "id", pageID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load page: %w", err)
	}

	blocks, err := w.store.PageBlocks(ctx, pageID)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	if len(blocks) == 0 {
		blocks = legacyBlocks(page.FullText)
	}
	if len(blocks) == 0 {
		_ = w.store.MarkFailed(ctx, pageID, "no blocks to classify")
		return nil
	}

	if err := w.store.SetStatus(ctx, pageID, store.StatusProcessing); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	_ = w.store.SetProgress(ctx, pageID, 0, len(blocks))

	failures := 0
	for i := range blocks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result := w.classifyBlock(ctx, &blocks[i])
		if result == nil {
			failures++
		} else {
			result.BlockIndex = i
			if err := w.store.AppendModelResult(ctx, pageID, *result); err != nil {
				w.log.Warn("worker: persist result failed", "page", pageID, "block", i, "error", err)
			}
		}
		_ = w.store.SetProgress(ctx, pageID, i+1, len(blocks))
	}

	if failures == len(blocks) {
		_ = w.store.MarkFailed(ctx, pageID, "classification failed for every block")
		w.logEvent(ctx, pageID, false)
		return nil
	}
	if err := w.store.MarkCompleted(ctx, pageID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.logEvent(ctx, pageID, true)
	w.log.Info("worker: page modeled", "id", pageID, "blocks", len(blocks), "failures", failures)
	return nil
}

// classifyBlock scores one block. Blocks the classifier omits are clean.
// A nil return means the model call itself failed.
func (w *Worker) classifyBlock(ctx context.Context, b *block.Block) *store.ModelResult {
	rows, err := w.classifier.Classify(ctx, []block.Block{*b})
	if err != nil {
		w.log.Warn("worker: classify failed", "error", err)
		return nil
	}
	result := &store.ModelResult{
		Text:           b.PlainText,
		TranslatedText: b.TranslatedPlainText,
	}
	if len(rows) > 0 {
		r := rows[0]
		result.IsDarkPattern = bool(r.IsDarkPattern)
		result.Probability = r.Probability
		result.Type = r.Type
		result.Predicate = r.Predicate
		if r.Translated != "" {
			result.TranslatedText = r.Translated
		}
	}
	return result
}

func (w *Worker) logEvent(ctx context.Context, pageID string, success bool) {
	if w.events == nil {
		return
	}
	w.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   "document_modeled",
		ServiceName: "darkmarkd",
		EntityType:  "document",
		EntityID:    pageID,
		Action:      "model",
		Success:     success,
	})
}

// legacyBlocks reconstructs block units from the flattened text channel.
func legacyBlocks(fullText string) []block.Block {
	var blocks []block.Block
	for _, part := range strings.Split(fullText, block.BlockDelim) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b := block.Block{BlockType: block.TypeLegacy}
		b.SetText(part)
		blocks = append(blocks, b)
	}
	return blocks
}
