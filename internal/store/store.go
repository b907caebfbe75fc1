// Package store provides the credential directory backing request
// authentication: consumer lookup, access token resolution and atomic
// nonce consumption.
package store

import (
	"context"
	"errors"
	"time"
)

// Common directory errors.
var (
	// ErrNotFound indicates that a consumer or token record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNonceAlreadyUsed indicates that a nonce has been presented before
	// for the same consumer and token.
	ErrNonceAlreadyUsed = errors.New("nonce already used")
)

// Consumer is a registered API client. Records are provisioned externally
// and read-only to the gateway.
type Consumer struct {
	// ID is the unique identifier of the consumer.
	ID string `json:"id" yaml:"id"`

	// Key is the oauth_consumer_key presented on the wire.
	Key string `json:"key" yaml:"key"`

	// Secret is the shared secret used by PLAINTEXT and HMAC-SHA1.
	Secret string `json:"secret" yaml:"secret"`

	// RSAPublicKey is an optional PEM-encoded PKIX public key used by
	// RSA-SHA1.
	RSAPublicKey string `json:"rsaPublicKey,omitempty" yaml:"rsaPublicKey,omitempty"`
}

// TokenStatus is the lifecycle status of an access token.
type TokenStatus string

// Token statuses.
const (
	TokenStatusValid   TokenStatus = "valid"
	TokenStatusRevoked TokenStatus = "revoked"
)

// Token is an access token delegated to a consumer on behalf of a user.
// Tokens are issued externally; the gateway only reads and validates them.
type Token struct {
	// Token is the oauth_token value presented on the wire.
	Token string `json:"token" yaml:"token"`

	// Secret is the token shared secret.
	Secret string `json:"secret" yaml:"secret"`

	// ConsumerID is the owning consumer.
	ConsumerID string `json:"consumerId" yaml:"consumerId"`

	// UserID is the user/principal the token was delegated for.
	UserID string `json:"userId" yaml:"userId"`

	// Status is the token lifecycle status.
	Status TokenStatus `json:"status" yaml:"status"`
}

// IsValid reports whether the token may be used for authentication.
func (t *Token) IsValid() bool {
	return t.Status == TokenStatusValid
}

// NonceRecord captures a consumed nonce for the anti-replay window.
type NonceRecord struct {
	ConsumerID string    `json:"consumerId"`
	TokenID    string    `json:"tokenId"`
	Nonce      string    `json:"nonce"`
	Timestamp  int64     `json:"timestamp"`
	FirstSeen  time.Time `json:"firstSeen"`
}

// Directory is the lookup contract against the external credential store.
type Directory interface {
	// LookupConsumer resolves a consumer by its key.
	// Returns ErrNotFound if no matching record exists.
	LookupConsumer(ctx context.Context, key string) (*Consumer, error)

	// ResolveAccessToken resolves an access token for the given consumer.
	// Returns ErrNotFound if the token does not exist, is revoked, or is
	// owned by a different consumer.
	ResolveAccessToken(ctx context.Context, consumer *Consumer, token string) (*Token, error)

	// CheckAndRecordNonce atomically records the nonce for the
	// (consumer, token) pair. Returns ErrNonceAlreadyUsed if the nonce
	// has been seen within the retention window. Exactly one of two
	// concurrent identical presentations succeeds.
	CheckAndRecordNonce(ctx context.Context, consumerID, tokenID string, timestamp int64, nonce string) error
}
