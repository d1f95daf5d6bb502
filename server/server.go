// Package server exposes the darkmark backend over HTTP: submission intake,
// stored document queries, modeling status, and the stateless extract and
// highlight services.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/darkmark/observability"
	"github.com/hazyhaar/darkmark/report"
	"github.com/hazyhaar/darkmark/shield"
	"github.com/hazyhaar/darkmark/store"
	"github.com/hazyhaar/darkmark/vtq"
)

// Config holds server settings.
type Config struct {
	// APIKeyHash is the bcrypt hash of the expected x-api-key header value.
	// Empty disables authentication.
	APIKeyHash string
	// BodyLimit bounds request bodies in bytes.
	BodyLimit int64
	// Middlewares is the security middleware stack; nil selects
	// shield.DefaultStack over the store's database.
	Middlewares []func(http.Handler) http.Handler
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.BodyLimit <= 0 {
		c.BodyLimit = 4 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the darkmark backend.
type Server struct {
	store   *store.Store
	queue   *vtq.Q
	events  *observability.EventLogger
	reports *report.Builder
	cfg     Config
	log     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithEventLogger wires business event logging.
func WithEventLogger(l *observability.EventLogger) Option {
	return func(s *Server) { s.events = l }
}

// New creates a Server over an opened store and modeling queue.
func New(st *store.Store, queue *vtq.Q, cfg Config, opts ...Option) *Server {
	cfg.defaults()
	s := &Server{
		store:   st,
		queue:   queue,
		reports: report.NewBuilder(),
		cfg:     cfg,
		log:     cfg.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.Middlewares == nil {
		s.cfg.Middlewares = shield.DefaultStack(st.DB)
	}
	return s
}

// Router builds the HTTP routing table with the security middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range s.cfg.Middlewares {
		r.Use(mw)
	}
	r.Use(s.limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/collect", s.handleCollect)
		r.Get("/latest", s.handleLatestByURL)
		r.Get("/doc/latest", s.handleDocLatest)
		r.Get("/doc/{id}", s.handleDocByID)
		r.Get("/doc/{id}/report", s.handleReport)
		r.Get("/model", s.handleModelRows)
		r.Get("/model/summary", s.handleModelSummary)
		r.Get("/model/progress/{id}", s.handleModelProgress)
		r.Post("/extract", s.handleExtract)
		r.Post("/highlight", s.handleHighlight)
	})

	return r
}

// limitBody caps every request body at the configured limit. Oversized JSON
// payloads surface as decode errors in the handlers.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.BodyLimit)
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey rejects requests whose x-api-key header does not match the
// configured bcrypt hash. A server without a hash accepts everything.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKeyHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("x-api-key")
		if key == "" ||
			bcrypt.CompareHashAndPassword([]byte(s.cfg.APIKeyHash), []byte(key)) != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logEvent(r *http.Request, eventType, entityID, action string, success bool) {
	if s.events == nil {
		return
	}
	s.events.LogEvent(r.Context(), observability.BusinessEvent{
		EventType:   eventType,
		ServiceName: "darkmarkd",
		EntityType:  "document",
		EntityID:    entityID,
		Action:      action,
		Success:     success,
	})
}
