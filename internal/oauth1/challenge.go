package oauth1

import (
	"fmt"
	"net/http"
)

// Challenge is the failure response handed back to the transport layer.
type Challenge struct {
	Status int
	Body   string
	Header http.Header
}

// NewChallenge builds a 401 challenge for a rejection: the body is the
// reason text followed by a newline and the WWW-Authenticate header names
// the realm.
func NewChallenge(reason string, status int, realm string) Challenge {
	h := make(http.Header, 1)
	h.Set("WWW-Authenticate", fmt.Sprintf("OAuth realm=%q", realm))
	return Challenge{
		Status: status,
		Body:   reason + "\n",
		Header: h,
	}
}

// ChallengeFor builds the challenge for a rejected outcome.
func ChallengeFor(o Outcome, realm string) Challenge {
	return NewChallenge(o.Reason, o.Status, realm)
}

// Forbidden builds the 403 response for a permission denial. No
// WWW-Authenticate header is attached since re-authenticating would not
// change the decision.
func Forbidden() Challenge {
	return Challenge{
		Status: http.StatusForbidden,
		Body:   ForbiddenBody,
	}
}

// AuthenticationRequired builds the 401 challenge for an unsigned request
// to an operation that requires authentication.
func AuthenticationRequired(method, title, realm string) Challenge {
	reason := fmt.Sprintf("%s %s: This API call requires authentication.", method, title)
	return NewChallenge(reason, http.StatusUnauthorized, realm)
}

// Write emits the challenge onto a response writer.
func (c Challenge) Write(w http.ResponseWriter) {
	for name, values := range c.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(c.Status)
	_, _ = w.Write([]byte(c.Body))
}
