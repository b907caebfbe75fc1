// Package oauth1 implements server-side verification of OAuth 1.0 signed
// requests as specified by RFC 5849.
//
// The package decides, for an inbound HTTP request, whether it carries a
// valid OAuth signature, which consumer and delegated user it belongs to,
// and whether the presentation is a replay. The result is an Outcome:
// unsigned, authenticated, or rejected with an HTTP status and reason.
// Credential and nonce state lives behind the store.Directory interface.
package oauth1
