package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/html"

	"github.com/hazyhaar/darkmark/collect"
	"github.com/hazyhaar/darkmark/locate"
	"github.com/hazyhaar/darkmark/observability"
	"github.com/hazyhaar/darkmark/severity"
	"github.com/hazyhaar/darkmark/store"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// handleStatus reports queue depth and the worker's latest heartbeat.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queue.Len(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hb, err := observability.LatestHeartbeat(r.Context(), s.store.DB, "darkmarkd", 45*time.Second)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"queue":  depth,
		"worker": hb,
	})
}

// handleCollect persists a submission and enqueues its modeling job.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var sub store.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.store.InsertSubmission(r.Context(), &sub)
	if err != nil {
		s.logEvent(r, "document_collected", "", "collect", false)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payload, _ := json.Marshal(jobPayload{PageID: id})
	if err := s.queue.Publish(r.Context(), "model_"+id, payload); err != nil {
		// Stored but not queued: report the id anyway, the poller will see
		// the page stuck in pending.
		s.log.Warn("collect: enqueue modeling job failed", "id", id, "error", err)
	}

	s.logEvent(r, "document_collected", id, "collect", true)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Server) writePage(w http.ResponseWriter, page *store.Page, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleLatestByURL(w http.ResponseWriter, r *http.Request) {
	tabURL := r.URL.Query().Get("tabUrl")
	if tabURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tabUrl is required"})
		return
	}
	page, err := s.store.LatestPageByTabURL(r.Context(), tabURL)
	s.writePage(w, page, err)
}

func (s *Server) handleDocLatest(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.LatestPage(r.Context())
	s.writePage(w, page, err)
}

func (s *Server) handleDocByID(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.PageByID(r.Context(), chi.URLParam(r, "id"))
	s.writePage(w, page, err)
}

// handleModelRows returns the bare result row array for a document.
func (s *Server) handleModelRows(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	rows, err := s.store.ModelResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []store.ModelResult{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleModelSummary(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	sum, err := s.store.ModelSummary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleModelProgress(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.PageByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": page.Status,
		"progress": map[string]int{
			"current": page.ProgressCurrent,
			"total":   page.ProgressTotal,
		},
		"error":       page.ErrorMessage,
		"completedAt": page.CompletedAt,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, err := s.store.PageByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	results, err := s.store.ModelResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if err := s.reports.Build(w, page, results); err != nil {
		s.log.Warn("report build failed", "id", id, "error", err)
	}
}

type extractRequest struct {
	HTML     string `json:"html"`
	FrameURL string `json:"frameUrl,omitempty"`
}

// handleExtract runs block extraction on raw HTML.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "html is required"})
		return
	}
	doc, err := html.Parse(strings.NewReader(req.HTML))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	scope := collect.Document(doc, req.FrameURL, nil)
	writeJSON(w, http.StatusOK, scope)
}

type structuredMeta struct {
	Selector     string `json:"selector,omitempty"`
	LinkSelector string `json:"linkSelector,omitempty"`
}

type highlightRequest struct {
	HTML  string `json:"html"`
	Items []struct {
		Text     string `json:"text"`
		Severity string `json:"severity,omitempty"`
	} `json:"items,omitempty"`

	// Single-item form.
	Text           string          `json:"text,omitempty"`
	Severity       string          `json:"severity,omitempty"`
	StructuredMeta *structuredMeta `json:"structuredMeta,omitempty"`
	Scroll         bool            `json:"scroll,omitempty"`
}

// handleHighlight applies highlights to raw HTML and returns the marked
// document. Bulk form highlights every item; single form honors selector
// hints and the scroll flag.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "html is required"})
		return
	}
	doc, err := html.Parse(strings.NewReader(req.HTML))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	marker := locate.New(doc, locate.WithLogger(s.log))

	var count int
	matched := false
	if len(req.Items) > 0 {
		items := make([]locate.Item, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, locate.Item{
				Text:     it.Text,
				Severity: severity.ParseLevel(it.Severity),
			})
		}
		count = marker.Bulk(items)
		matched = count > 0
	} else {
		lreq := locate.Request{
			Text:     req.Text,
			Severity: severity.ParseLevel(req.Severity),
			Scroll:   req.Scroll,
			Clear:    true,
		}
		if req.StructuredMeta != nil {
			lreq.Selector = req.StructuredMeta.Selector
			lreq.LinkSelector = req.StructuredMeta.LinkSelector
		}
		res := marker.Highlight(lreq)
		count = res.Marks
		matched = res.Matched
	}

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    matched,
		"count": count,
		"html":  sb.String(),
	})
}
