package auth

import (
	"net/http"
	"strings"
)

// CredentialKind distinguishes how an extracted value must be checked.
type CredentialKind int

const (
	// KindSession values are session ids looked up in the store.
	KindSession CredentialKind = iota

	// KindToken values are compared against the access token secret.
	KindToken
)

// Credential is one candidate credential extracted from a request.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// Credentials extracts every candidate credential from r, in the fixed
// priority order the rest of the system relies on:
//
//  1. Authorization: Bearer <sessionId>
//  2. ?session=<sessionId>
//  3. ?token=<secret>
//  4. Authorization: Token <secret>
//
// Absent locations are skipped; callers try the survivors in order.
func Credentials(r *http.Request) []Credential {
	var out []Credential

	authHeader := r.Header.Get("Authorization")
	if v, ok := strings.CutPrefix(authHeader, "Bearer "); ok && v != "" {
		out = append(out, Credential{Kind: KindSession, Value: v})
	}
	if v := r.URL.Query().Get("session"); v != "" {
		out = append(out, Credential{Kind: KindSession, Value: v})
	}
	if v := r.URL.Query().Get("token"); v != "" {
		out = append(out, Credential{Kind: KindToken, Value: v})
	}
	if v, ok := strings.CutPrefix(authHeader, "Token "); ok && v != "" {
		out = append(out, Credential{Kind: KindToken, Value: v})
	}

	return out
}
