package api

import (
	"time"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/auth"
)

// SummaryResponse is the payload for GET /.
type SummaryResponse struct {
	AddressCount     int        `json:"address_count"`
	FastCount        int        `json:"fast_count"`
	LastUpdated      *time.Time `json:"last_updated"`
	LastProbed       *time.Time `json:"last_probed"`
	HasAdminPassword bool       `json:"has_admin_password"`
}

// UpdateResponse is the payload for POST /update.
type UpdateResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// SpeedTestResponse is the payload for GET /speedtest.
type SpeedTestResponse struct {
	Address   string `json:"address"`
	LatencyMs *int64 `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// LoginRequest is the body of POST /admin-login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the payload for a successful POST /admin-login.
type LoginResponse struct {
	Success   bool       `json:"success"`
	SessionID string     `json:"session_id"`
	Token     *TokenView `json:"token"`
}

// LogoutResponse is the payload for POST /admin-logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// StatusResponse is the payload for GET /admin-status.
type StatusResponse struct {
	HasAdminPassword bool       `json:"has_admin_password"`
	HasToken         bool       `json:"has_token"`
	Token            *TokenMeta `json:"token,omitempty"`
}

// TokenMeta is the non-secret view of the access token, safe for
// unauthenticated status reads.
type TokenMeta struct {
	ExpiresAt   *time.Time `json:"expires_at"`
	NeverExpire bool       `json:"never_expire"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

// TokenView is the full access token, returned only on authorized paths.
type TokenView struct {
	Secret string `json:"secret"`
	TokenMeta
}

// TokenRequest is the body of POST /admin-token.
type TokenRequest struct {
	Token       string `json:"token"`
	ExpiresDays int    `json:"expires_days"`
	NeverExpire bool   `json:"never_expire"`
}

// TokenResponse is the payload for /admin-token.
type TokenResponse struct {
	Success bool       `json:"success"`
	Token   *TokenView `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toTokenMeta(t *auth.AccessToken) *TokenMeta {
	if t == nil {
		return nil
	}
	return &TokenMeta{
		ExpiresAt:   t.ExpiresAt,
		NeverExpire: t.NeverExpire,
		CreatedAt:   t.CreatedAt,
		LastUsedAt:  t.LastUsedAt,
	}
}

func toTokenView(t *auth.AccessToken) *TokenView {
	if t == nil {
		return nil
	}
	return &TokenView{Secret: t.Secret, TokenMeta: *toTokenMeta(t)}
}
