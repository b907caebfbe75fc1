package oauth1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apiward/oauth1gw/internal/observability"
	"github.com/apiward/oauth1gw/internal/store"
)

// Authenticator decides whether an inbound request carries a valid OAuth 1.0
// signature and, if so, which consumer and user it belongs to.
type Authenticator interface {
	// Authenticate runs the decision chain for a single request. The
	// returned error is non-nil only for directory faults, which callers
	// must surface as a 5xx class failure rather than a 401.
	Authenticate(ctx context.Context, r *http.Request) (Outcome, error)
}

type authenticator struct {
	logger    observability.Logger
	directory store.Directory
	replay    *ReplayGuard
	metrics   *Metrics
}

// Option configures the authenticator.
type Option func(*authenticator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *authenticator) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(a *authenticator) {
		a.metrics = m
	}
}

// New creates an authenticator over the given directory and replay guard.
func New(directory store.Directory, replay *ReplayGuard, opts ...Option) Authenticator {
	a := &authenticator{
		logger:    observability.NopLogger(),
		directory: directory,
		replay:    replay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rejection reason classes used as metric labels. Free-form reason text
// would blow up label cardinality.
const (
	rejectParams    = "params"
	rejectVersion   = "version"
	rejectConsumer  = "consumer"
	rejectToken     = "token"
	rejectReplay    = "replay"
	rejectSignature = "signature"
)

func (a *authenticator) Authenticate(ctx context.Context, r *http.Request) (Outcome, error) {
	start := time.Now()
	outcome, err := a.authenticate(ctx, r)
	if err != nil {
		return Outcome{}, err
	}
	if a.metrics != nil {
		a.metrics.RecordOutcome(outcome.Decision, time.Since(start))
	}
	return outcome, nil
}

func (a *authenticator) authenticate(ctx context.Context, r *http.Request) (Outcome, error) {
	params, err := Extract(r)
	if err != nil {
		if errors.Is(err, ErrMalformedForm) {
			return a.reject(rejectParams, ReasonMalformedForm), nil
		}
		return a.reject(rejectParams, ReasonMalformedHeader), nil
	}

	if !params.Signed() {
		return Unsigned(), nil
	}

	if name := params.DuplicateProtocolParameter(); name != "" {
		a.logger.Debug("duplicate protocol parameter", observability.String("parameter", name))
		return a.reject(rejectParams, ReasonDuplicateParameter), nil
	}

	if v := params.Get(paramVersion); v != "1.0" {
		return a.reject(rejectVersion, fmt.Sprintf("Unsupported OAuth version: %s", v)), nil
	}

	consumer, err := a.directory.LookupConsumer(ctx, params.Get(paramConsumerKey))
	if errors.Is(err, store.ErrNotFound) {
		return a.reject(rejectConsumer, ReasonConsumerNotFound), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("consumer lookup: %w", err)
	}

	tokenValue := params.Get(paramToken)
	if tokenValue == "" {
		return a.reject(rejectToken, ReasonTokenMissing), nil
	}
	token, err := a.directory.ResolveAccessToken(ctx, consumer, tokenValue)
	if errors.Is(err, store.ErrNotFound) {
		return a.reject(rejectToken, ReasonTokenNotFound), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("token lookup: %w", err)
	}

	reason, err := a.replay.Check(ctx, consumer.ID, token.Token,
		params.Get(paramTimestamp), params.Get(paramNonce))
	if err != nil {
		return Outcome{}, fmt.Errorf("replay check: %w", err)
	}
	if reason != "" {
		return a.reject(rejectReplay, reason), nil
	}

	method := params.Get(paramSignatureMethod)
	base := BaseString(r, params.Pairs())
	switch err := VerifySignature(method, params.Signature(), base,
		consumer.Secret, token.Secret, consumer.RSAPublicKey); {
	case errors.Is(err, ErrUnsupportedSignatureMethod):
		return a.reject(rejectSignature, fmt.Sprintf("Unsupported signature method: %s", method)), nil
	case err != nil:
		a.logger.Debug("signature verification failed",
			observability.String("consumer", consumer.Key),
			observability.String("method", method),
			observability.Error(err))
		return a.reject(rejectSignature, ReasonSignatureInvalid), nil
	}

	a.logger.Debug("request authenticated",
		observability.String("consumer", consumer.ID),
		observability.String("user", token.UserID))
	return Authenticated(consumer.ID, token.UserID), nil
}

func (a *authenticator) reject(class, reason string) Outcome {
	if a.metrics != nil {
		a.metrics.RecordRejection(class)
	}
	return Rejected(reason)
}

// Ensure authenticator implements Authenticator.
var _ Authenticator = (*authenticator)(nil)
