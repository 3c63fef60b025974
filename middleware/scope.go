package middleware

import (
	"context"

	"github.com/garagescholars/garage-tech-stack-sub001/scope"
)

// Scope returns middleware that attaches the call's actor to the context
// so extensions and stores further down see who is acting. An actor
// already on the context is left alone.
func Scope() Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		if _, ok := scope.ActorFrom(ctx); !ok && c.Actor.ID != "" {
			ctx = scope.WithActor(ctx, c.Actor)
		}
		return next(ctx)
	}
}
