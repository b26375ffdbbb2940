// Package auth is the credential manager gating mutating operations.
//
// Two credential families exist: short-lived login sessions (24h store
// TTL, issued by Login) and a singleton long-lived access token with
// its own expiry policy. AuthorizeRequest tries the request's candidate
// credentials in a fixed priority order; with no admin password
// configured the whole system is open and everything authorizes.
//
// Store errors during authorization fail closed: they read as "no such
// session" or "no such token", never as success and never as a
// surfaced error.
package auth
