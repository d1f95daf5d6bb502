package collect

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/darkmark/block"
	"github.com/hazyhaar/darkmark/dedupe"
)

// ErrAccessDenied marks a child frame the loader cannot enter, typically a
// cross-origin frame. It is an expected per-frame condition: callers skip
// the frame and keep going.
var ErrAccessDenied = errors.New("collect: frame access denied")

// FrameDocument is one loaded document scope in the frame tree.
type FrameDocument struct {
	URL     string
	FrameID *int // nil for the main frame
	Root    *html.Node
}

// ChildFrame is the outcome of trying to open one nested frame. Err is
// ErrAccessDenied (possibly wrapped) when the frame is unreachable.
type ChildFrame struct {
	Doc *FrameDocument
	Err error
}

// FrameLoader opens documents across a page's frame tree. Implementations
// back this with a live browser or a plain HTTP fetcher.
type FrameLoader interface {
	// OpenRoot loads the top-level document.
	OpenRoot(ctx context.Context) (*FrameDocument, error)
	// ChildFrames attempts to open every nested frame of parent. Unreachable
	// frames are reported as entries with Err set rather than omitted, so
	// callers can count them.
	ChildFrames(ctx context.Context, parent *FrameDocument) ([]ChildFrame, error)
}

// Options tunes the frame walk.
type Options struct {
	MaxDepth int // nested frame depth bound; <=0 means DefaultMaxFrameDepth
	Logger   *slog.Logger
}

// DefaultMaxFrameDepth bounds frame nesting. Legitimate pages rarely nest
// past two levels; deeper trees are ad sandboxes.
const DefaultMaxFrameDepth = 3

// Frames loads the whole frame tree breadth-first through loader and runs
// block collection over every reachable scope. Scopes appear in discovery
// order with the main frame first. Denied frames are skipped; a root load
// failure is returned as-is.
func Frames(ctx context.Context, loader FrameLoader, opts Options) ([]*block.Scope, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxFrameDepth
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	root, err := loader.OpenRoot(ctx)
	if err != nil {
		return nil, err
	}

	type level struct {
		docs  []*FrameDocument
		depth int
	}
	docs := []*FrameDocument{root}
	queue := []level{{docs: []*FrameDocument{root}, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		var next []*FrameDocument
		for _, parent := range cur.docs {
			children, err := loader.ChildFrames(ctx, parent)
			if err != nil {
				return nil, err
			}
			for _, ch := range children {
				if ch.Err != nil {
					if errors.Is(ch.Err, ErrAccessDenied) {
						log.Debug("frame skipped", "parent", parent.URL, "err", ch.Err)
						continue
					}
					return nil, ch.Err
				}
				docs = append(docs, ch.Doc)
				next = append(next, ch.Doc)
			}
		}
		if len(next) > 0 {
			queue = append(queue, level{docs: next, depth: cur.depth + 1})
		}
	}

	// Collection per scope is pure; run the scopes in parallel and keep
	// discovery order in the result.
	scopes := make([]*block.Scope, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scopes[i] = Document(doc.Root, doc.URL, doc.FrameID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scopes, nil
}

// Merge flattens scopes into a single page-ordered block list and applies
// the second dedupe pass across scope boundaries. Within-block dedupe runs
// again first; it is idempotent for blocks already cleaned in pass 1.
func Merge(scopes []*block.Scope) []block.Block {
	var all []block.Block
	for _, s := range scopes {
		if s == nil {
			continue
		}
		all = append(all, s.Blocks...)
	}
	for i := range all {
		dedupe.WithinBlock(&all[i])
	}
	return dedupe.Blocks(all)
}
