// Package identity carries the acting user through mutating calls. The engine
// never authenticates; it only records who performed an operation, so the
// actor is threaded explicitly rather than read from ambient state.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the authenticated principal supplied by the portal's auth layer.
type Actor struct {
	ID   uuid.UUID
	Name string
}

// System is the actor recorded for transitions applied by background workers.
var System = Actor{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "system"}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
