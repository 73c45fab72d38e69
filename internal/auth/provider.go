// Package auth provides the authoring capability and the providers that
// grant it. Write handlers receive the capability as an explicit value; no
// code path consults an ambient admin flag.
package auth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/foliohq/folio/internal/model"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

type Provider interface {
	// WithHeaderAuthorization wraps a handler so that a valid credential on
	// the request attaches the operator's id to the context.
	WithHeaderAuthorization() func(http.Handler) http.Handler

	GetUserIDFromSession(r *http.Request) (model.UserID, error)

	EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	HandleWebhookUser(w http.ResponseWriter, r *http.Request)
}
