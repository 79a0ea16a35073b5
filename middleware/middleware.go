package middleware

import (
	"context"

	"github.com/saverio-kantox/tarearbol/worker"
)

// Handler is the terminal function that runs one step invocation and
// yields its directive.
type Handler func(ctx context.Context) (worker.Directive, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the invocation being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, inv *worker.Invocation, next Handler) (worker.Directive, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, tracing, metrics) executes as:
//
//	logging → tracing → metrics → step
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *worker.Invocation, next Handler) (worker.Directive, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (worker.Directive, error) {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx)
	}
}
