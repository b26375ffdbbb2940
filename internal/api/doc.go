// Package api exposes the collector's HTTP control surface: open
// snapshot reads (JSON and plain text), the gated /update trigger, the
// single-address /speedtest, and the admin login/token endpoints.
// Response DTOs live in types.go.
package api
