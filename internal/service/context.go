package service

import "context"

type contextKey string

const (
	actorKey contextKey = "actor"
	traceKey contextKey = "trace_id"
)

// Actor is the authenticated caller of an administrative operation.
type Actor struct {
	ID    string
	Email string
	Role  string
}

// SystemActor is used when no caller identity is attached to the context.
var SystemActor = Actor{ID: "system", Role: "SYSTEM"}

// WithActor injects the actor into the context
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor stored in ctx, or nil.
func ActorFrom(ctx context.Context) *Actor {
	val, ok := ctx.Value(actorKey).(*Actor)
	if !ok {
		return nil
	}
	return val
}

// ActorOrSystem never returns nil.
func ActorOrSystem(ctx context.Context) Actor {
	if a := ActorFrom(ctx); a != nil {
		return *a
	}
	return SystemActor
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey, traceID)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey).(string)
	return id
}
