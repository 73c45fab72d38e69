package auth

import (
	"context"

	"github.com/foliohq/folio/internal/model"
)

// ContextKey is a dedicated type for context keys to avoid collisions.
type ContextKey string

const ContextKeyUserID ContextKey = "userID"

// Capability is the explicit permission to mutate content, carried into
// every write path as a value. It exists only for requests that both carry a
// valid operator credential and run while authoring mode is enabled.
type Capability struct {
	Operator model.UserID
}

// ContextWithUserID returns a new context with the operator id set.
func ContextWithUserID(ctx context.Context, userID model.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext extracts the operator id from the context.
func UserIDFromContext(ctx context.Context) (model.UserID, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(model.UserID)
	return userID, ok
}

// CapabilityFromContext derives the authoring capability for a request.
// authoringEnabled is the site-level switch; without it no credential grants
// writes.
func CapabilityFromContext(ctx context.Context, authoringEnabled bool) (Capability, error) {
	if !authoringEnabled {
		return Capability{}, model.ErrUnauthorized
	}

	userID, ok := UserIDFromContext(ctx)
	if !ok || userID == "" {
		return Capability{}, model.ErrUnauthorized
	}

	return Capability{Operator: userID}, nil
}
