// Package store provides the SQLite persistence layer for collected pages,
// their structured blocks, and classification results.
package store

import (
	"database/sql"
	"errors"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/darkmark/dbopen"
	"github.com/hazyhaar/darkmark/idgen"
)

// ErrNotFound is returned when a requested page does not exist.
var ErrNotFound = errors.New("store: not found")

// Modeling status values for a page.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Store is the darkmark database handle.
type Store struct {
	DB *sql.DB

	newID    idgen.Generator
	sanitize *bluemonday.Policy
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator overrides the page ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// Open opens (or creates) the darkmark SQLite database at path, applies the
// standard pragmas and the schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// New wraps an already-opened database. The schema must have been applied
// (Open does this; tests use dbopen.OpenMemory with WithSchema).
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		DB:       db,
		newID:    idgen.Prefixed("doc_", idgen.Default),
		sanitize: bluemonday.UGCPolicy(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
