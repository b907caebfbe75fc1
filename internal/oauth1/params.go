package oauth1

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"
)

// Protocol parameter names recognized on the wire.
const (
	paramConsumerKey     = "oauth_consumer_key"
	paramToken           = "oauth_token"
	paramSignatureMethod = "oauth_signature_method"
	paramSignature       = "oauth_signature"
	paramTimestamp       = "oauth_timestamp"
	paramNonce           = "oauth_nonce"
	paramVersion         = "oauth_version"
	paramRealm           = "realm"
)

const (
	headerSchemeName = "OAuth"
	headerScheme     = headerSchemeName + " "
)

const protocolPrefix = "oauth_"

// Parameter is a single decoded name/value pair in wire order.
type Parameter struct {
	Name  string
	Value string
}

// ParameterSet is the canonical OAuth parameter view of a request:
// Authorization header parameters first, then query and body parameters,
// with oauth_signature and realm stripped out so they never reach the
// signature base string.
type ParameterSet struct {
	pairs          []Parameter
	signature      string
	signatureCount int
	hasHeader      bool
}

// Extract builds the parameter set for a request. The request body is
// consumed if it is form encoded.
func Extract(r *http.Request) (*ParameterSet, error) {
	set := &ParameterSet{}

	header := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(header, headerScheme):
		set.hasHeader = true
		if err := set.appendHeaderParameters(header[len(headerScheme):]); err != nil {
			return nil, err
		}
	case header == headerSchemeName:
		// A bare scheme token still claims the OAuth scheme.
		set.hasHeader = true
	}

	if err := r.ParseForm(); err != nil {
		return nil, ErrMalformedForm
	}
	set.appendFormParameters(r.Form)

	return set, nil
}

func (s *ParameterSet) appendHeaderParameters(list string) error {
	for _, chunk := range strings.Split(list, ",") {
		chunk = strings.TrimFunc(chunk, unicode.IsSpace)
		if chunk == "" {
			continue
		}
		i := strings.Index(chunk, "=")
		if i < 0 {
			return ErrMalformedHeader
		}
		name, quoted := chunk[:i], chunk[i+1:]
		if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
			return ErrMalformedHeader
		}
		value, err := url.PathUnescape(quoted[1 : len(quoted)-1])
		if err != nil {
			return ErrMalformedHeader
		}
		s.add(name, value)
	}
	return nil
}

func (s *ParameterSet) appendFormParameters(form url.Values) {
	for name, values := range form {
		for _, value := range values {
			s.add(name, value)
		}
	}
}

func (s *ParameterSet) add(name, value string) {
	switch name {
	case paramSignature:
		s.signatureCount++
		if s.signature == "" {
			s.signature = value
		}
	case paramRealm:
		// Informational only, excluded from signing.
	default:
		s.pairs = append(s.pairs, Parameter{Name: name, Value: value})
	}
}

// Get returns the first value for the named parameter, or "".
func (s *ParameterSet) Get(name string) string {
	for _, p := range s.pairs {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Signature returns the presented oauth_signature value.
func (s *ParameterSet) Signature() string {
	return s.signature
}

// Signed reports whether the request claims to be OAuth signed: either a
// non-empty oauth_signature parameter was presented or the Authorization
// header carried the OAuth scheme.
func (s *ParameterSet) Signed() bool {
	return s.hasHeader || s.signature != ""
}

// Pairs returns the ordered parameters that participate in the signature
// base string.
func (s *ParameterSet) Pairs() []Parameter {
	return s.pairs
}

// DuplicateProtocolParameter returns the name of the first oauth_ prefixed
// parameter that appears more than once across the combined header and
// query/body set, or "". Header and query copies of the same protocol
// parameter would silently produce a different base string on each side, so
// such requests are rejected outright. oauth_signature counts even though it
// is stripped before signing.
func (s *ParameterSet) DuplicateProtocolParameter() string {
	if s.signatureCount > 1 {
		return paramSignature
	}
	seen := make(map[string]struct{}, len(s.pairs))
	for _, p := range s.pairs {
		if !strings.HasPrefix(p.Name, protocolPrefix) {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			return p.Name
		}
		seen[p.Name] = struct{}{}
	}
	return ""
}
