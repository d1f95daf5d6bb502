// Package kit defines the transport-agnostic endpoint abstraction: business
// logic is written once as an Endpoint and exposed over HTTP or MCP through
// thin adapters.
package kit

import "context"

// Endpoint is a single operation: typed request in, typed response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first argument is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
