package oauth1

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/apiward/oauth1gw/internal/store"
)

// ReplayGuard enforces timestamp freshness and nonce uniqueness per
// (consumer, token) pair. The nonce record itself is delegated to the
// directory, whose check-and-record step is atomic so that two racing
// presentations of the same nonce cannot both pass.
type ReplayGuard struct {
	directory store.Directory
	maxAge    time.Duration
	maxSkew   time.Duration
	now       func() time.Time
}

// ReplayOption configures a ReplayGuard.
type ReplayOption func(*ReplayGuard)

// WithReplayClock overrides the time source, used in tests.
func WithReplayClock(now func() time.Time) ReplayOption {
	return func(g *ReplayGuard) {
		g.now = now
	}
}

// NewReplayGuard creates a guard over the given directory. A maxAge of zero
// disables the freshness window entirely; maxSkew widens it to tolerate
// client clock drift.
func NewReplayGuard(directory store.Directory, maxAge, maxSkew time.Duration, opts ...ReplayOption) *ReplayGuard {
	g := &ReplayGuard{
		directory: directory,
		maxAge:    maxAge,
		maxSkew:   maxSkew,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check validates the timestamp window and consumes the nonce. It returns
// ("", nil) on acceptance, a client-facing reason on a protocol rejection,
// and a non-nil error only for directory faults.
func (g *ReplayGuard) Check(ctx context.Context, consumerID, tokenID, timestampValue, nonce string) (string, error) {
	if nonce == "" || timestampValue == "" {
		return ReasonMissingNonce, nil
	}

	ts, err := strconv.ParseInt(timestampValue, 10, 64)
	if err != nil || ts < 0 {
		return ReasonInvalidTimestamp, nil
	}

	if g.maxAge > 0 {
		switch age := g.now().Sub(time.Unix(ts, 0)); {
		case age > g.maxAge+g.maxSkew:
			return ReasonTimestampExpired, nil
		case -age > g.maxSkew:
			return ReasonTimestampInFuture, nil
		}
	}

	err = g.directory.CheckAndRecordNonce(ctx, consumerID, tokenID, ts, nonce)
	if errors.Is(err, store.ErrNonceAlreadyUsed) {
		return ReasonNonceUsed, nil
	}
	if err != nil {
		return "", err
	}
	return "", nil
}
