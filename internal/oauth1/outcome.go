package oauth1

import "net/http"

// Decision is the terminal state of an authentication attempt.
type Decision uint8

const (
	// DecisionUnsigned means the request carried no OAuth material at all.
	// Callers must treat it as "proceed without identity", not as a
	// rejection.
	DecisionUnsigned Decision = iota

	// DecisionAuthenticated means the signature verified against a known
	// consumer and token.
	DecisionAuthenticated

	// DecisionRejected means the request claimed to be signed but failed
	// verification.
	DecisionRejected
)

// String returns the decision name for logging and metric labels.
func (d Decision) String() string {
	switch d {
	case DecisionUnsigned:
		return "unsigned"
	case DecisionAuthenticated:
		return "authenticated"
	case DecisionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of running authentication over a single request.
type Outcome struct {
	Decision Decision

	// ConsumerID and UserID are set only when Decision is
	// DecisionAuthenticated. UserID comes from the access token's
	// delegating user.
	ConsumerID string
	UserID     string

	// Reason and Status are set only when Decision is DecisionRejected.
	// Reason is the client-facing text used to build the challenge body.
	Reason string
	Status int
}

// Unsigned returns the outcome for a request with no OAuth material.
func Unsigned() Outcome {
	return Outcome{Decision: DecisionUnsigned}
}

// Authenticated returns a successful outcome for the given identity.
func Authenticated(consumerID, userID string) Outcome {
	return Outcome{
		Decision:   DecisionAuthenticated,
		ConsumerID: consumerID,
		UserID:     userID,
	}
}

// Rejected returns a terminal rejection with a client-facing reason.
func Rejected(reason string) Outcome {
	return Outcome{
		Decision: DecisionRejected,
		Reason:   reason,
		Status:   http.StatusUnauthorized,
	}
}
