// Package scope carries the acting principal through context.Context.
//
// The HTTP layer resolves who is calling and attaches an Actor; the
// middleware chain and extensions read it back for logging and auditing.
package scope

import (
	"context"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

type actorKey struct{}

// WithActor attaches an actor to the context.
func WithActor(ctx context.Context, a fieldwork.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor attached to the context, if any.
func ActorFrom(ctx context.Context) (fieldwork.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(fieldwork.Actor)
	return a, ok
}

// Capture returns the actor's ID and role, or empty strings when none is
// attached.
func Capture(ctx context.Context) (actorID, role string) {
	a, ok := ActorFrom(ctx)
	if !ok {
		return "", ""
	}
	return a.ID, string(a.Role)
}
