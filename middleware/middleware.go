// Package middleware provides composable middleware for lifecycle actions.
// Middleware wraps action calls synchronously and can modify execution
// (recover from panics, inject the actor, log, add tracing, etc.).
package middleware

import (
	"context"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// Call describes one lifecycle action passing through the chain.
type Call struct {
	// JobID is the job the action targets. It is id.Nil for intake.
	JobID id.JobID
	// Action is the action name, e.g. "claim" or "task.propose".
	Action string
	// Actor is who initiated the action.
	Actor fieldwork.Actor
	// Timeout bounds the action when positive.
	Timeout time.Duration
}

// Handler is the terminal function that executes the action.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the call being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, c Call, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, scope) executes as:
//
//	logging → recover → scope → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, c, prev)
			}
		}
		return h(ctx)
	}
}
