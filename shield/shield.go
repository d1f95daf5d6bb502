// Package shield provides reusable HTTP security middleware. It consolidates
// security headers, rate limiting, body limits, request tracing, and HEAD
// method handling into a single importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxFormBody(64 * 1024))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(db).Middleware)
//	r.Use(shield.HeadToGet)
//
// Or apply the default stack in one call:
//
//	for _, mw := range shield.DefaultStack(db) {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack for a publicly exposed
// service. Middleware is ordered: HeadToGet → SecurityHeaders → MaxFormBody →
// TraceID → RateLimiter.
func DefaultStack(db *sql.DB) []func(http.Handler) http.Handler {
	rl := NewRateLimiter(db)
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxFormBody(64 * 1024),
		TraceID,
		rl.Middleware,
	}
}

// LocalStack is DefaultStack without rate limiting, for services bound to
// loopback or otherwise not publicly exposed.
func LocalStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxFormBody(64 * 1024),
		TraceID,
	}
}
