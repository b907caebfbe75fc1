// Package server exposes the authentication engine over HTTP: the
// per-request authorization hook, the gin middleware that applies it, and
// the server lifecycle.
package server

import (
	"context"
	"net/http"

	"github.com/apiward/oauth1gw/internal/authz"
	"github.com/apiward/oauth1gw/internal/oauth1"
	"github.com/apiward/oauth1gw/internal/observability"
)

// Identity is the authenticated caller attached to allowed requests.
type Identity struct {
	ConsumerID string
	UserID     string
}

// Result is the hook's decision for one request: either the request is
// allowed through (with an identity when it was signed) or it is halted
// with a ready-to-write challenge response.
type Result struct {
	Allow     bool
	Identity  *Identity
	Challenge oauth1.Challenge
}

// Hook is the per-request seam between the transport and the
// authentication engine.
type Hook struct {
	logger        observability.Logger
	authenticator oauth1.Authenticator
	gate          *authz.Gate
	realm         string
}

// HookOption configures a Hook.
type HookOption func(*Hook)

// WithHookLogger sets the logger.
func WithHookLogger(logger observability.Logger) HookOption {
	return func(h *Hook) {
		h.logger = logger
	}
}

// WithRealm sets the realm rendered into WWW-Authenticate headers.
func WithRealm(realm string) HookOption {
	return func(h *Hook) {
		h.realm = realm
	}
}

// NewHook creates the authorization hook.
func NewHook(authenticator oauth1.Authenticator, gate *authz.Gate, opts ...HookOption) *Hook {
	h := &Hook{
		logger:        observability.NopLogger(),
		authenticator: authenticator,
		gate:          gate,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Authorize runs authentication and the permission gate for a request
// targeting the given operation. The returned error is non-nil only for
// directory faults; callers must answer those with a 5xx, not a challenge.
func (h *Hook) Authorize(ctx context.Context, r *http.Request, operationID string) (Result, error) {
	outcome, err := h.authenticator.Authenticate(ctx, r)
	if err != nil {
		return Result{}, err
	}

	switch outcome.Decision {
	case oauth1.DecisionRejected:
		return Result{Challenge: oauth1.ChallengeFor(outcome, h.realm)}, nil

	case oauth1.DecisionUnsigned:
		if !h.gate.Registry().RequiresAuth(operationID) {
			return Result{Allow: true}, nil
		}
		op, ok := h.gate.Registry().Lookup(operationID)
		if !ok {
			op.Method = r.Method
			op.Title = operationID
		}
		return Result{Challenge: oauth1.AuthenticationRequired(op.Method, op.Title, h.realm)}, nil

	case oauth1.DecisionAuthenticated:
		if !h.gate.Allow(outcome.ConsumerID, operationID) {
			return Result{Challenge: oauth1.Forbidden()}, nil
		}
		return Result{
			Allow: true,
			Identity: &Identity{
				ConsumerID: outcome.ConsumerID,
				UserID:     outcome.UserID,
			},
		}, nil

	default:
		return Result{Challenge: oauth1.NewChallenge(
			oauth1.ReasonSignatureInvalid, http.StatusUnauthorized, h.realm)}, nil
	}
}
