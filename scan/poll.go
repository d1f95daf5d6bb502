package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/darkmark/store"
)

// Status is one modeling progress snapshot.
type Status struct {
	DocID       string `json:"docId"`
	Status      string `json:"status"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	Error       string `json:"error,omitempty"`
	CompletedAt *int64 `json:"completedAt,omitempty"`
}

// Terminal reports whether no further snapshots will follow.
func (s Status) Terminal() bool {
	return s.Status == store.StatusCompleted || s.Status == store.StatusFailed
}

// Poller watches one document's modeling progress. Each Poll call owns its
// lifecycle: it stops at the first terminal status or when ctx is cancelled,
// then closes the channel.
type Poller struct {
	scanner  *Scanner
	interval time.Duration
	log      *slog.Logger
}

// NewPoller creates a poller over the scanner's backend connection.
func NewPoller(s *Scanner, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{scanner: s, interval: interval, log: s.log}
}

// Poll emits progress snapshots for docID on the returned channel. The
// channel carries at most one snapshot per interval and is closed after a
// terminal status or cancellation. Transient fetch errors are logged and
// skipped.
func (p *Poller) Poll(ctx context.Context, docID string) <-chan Status {
	out := make(chan Status, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			st, err := p.fetch(ctx, docID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn("poll: progress fetch failed", "doc", docID, "error", err)
			} else {
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
				if st.Terminal() {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (p *Poller) fetch(ctx context.Context, docID string) (Status, error) {
	var body struct {
		Status   string `json:"status"`
		Progress struct {
			Current int `json:"current"`
			Total   int `json:"total"`
		} `json:"progress"`
		Error       string `json:"error"`
		CompletedAt *int64 `json:"completedAt"`
	}
	if err := p.scanner.getJSON(ctx, "/model/progress/"+docID, &body); err != nil {
		return Status{}, err
	}
	return Status{
		DocID:       docID,
		Status:      body.Status,
		Current:     body.Progress.Current,
		Total:       body.Progress.Total,
		Error:       body.Error,
		CompletedAt: body.CompletedAt,
	}, nil
}
