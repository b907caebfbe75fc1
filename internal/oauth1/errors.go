package oauth1

import "errors"

// ErrSignatureInvalid is returned when the presented signature does not
// match the computed one.
var ErrSignatureInvalid = errors.New("signature verification failed")

// ErrUnsupportedSignatureMethod is returned for a signature method other
// than PLAINTEXT, HMAC-SHA1 or RSA-SHA1.
var ErrUnsupportedSignatureMethod = errors.New("unsupported signature method")

// ErrNoRSAPublicKey is returned when an RSA-SHA1 request targets a consumer
// with no registered public key.
var ErrNoRSAPublicKey = errors.New("consumer has no RSA public key")

// ErrMalformedHeader is returned when an Authorization header carries the
// OAuth prefix but its parameter list cannot be parsed.
var ErrMalformedHeader = errors.New("malformed oauth authorization header")

// ErrMalformedForm is returned when the request's query string or form body
// cannot be parsed.
var ErrMalformedForm = errors.New("malformed request parameters")

// Client-facing rejection reasons. These strings are part of the wire
// contract and are surfaced verbatim in 401 challenge bodies.
const (
	ReasonConsumerNotFound   = "Consumer key not found."
	ReasonTokenMissing       = "Missing OAuth token."
	ReasonTokenNotFound      = "Access token not found."
	ReasonSignatureInvalid   = "Signature verification failed."
	ReasonDuplicateParameter = "Duplicate OAuth protocol parameter."
	ReasonMalformedHeader    = "Invalid OAuth Authorization header."
	ReasonMalformedForm      = "Invalid request parameters."

	ReasonNonceUsed          = "Nonce already used."
	ReasonMissingNonce       = "Missing OAuth nonce or timestamp."
	ReasonInvalidTimestamp   = "Invalid OAuth timestamp."
	ReasonTimestampExpired   = "Timestamp expired."
	ReasonTimestampInFuture  = "Timestamp too far in the future."

	// ForbiddenBody is the fixed 403 body for permission denials.
	ForbiddenBody = "You are not authorized to execute this API call.\n"
)
