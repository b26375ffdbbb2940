package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/store"
)

const (
	// SessionTTL is the store-enforced lifetime of a login session.
	// Sessions are never deleted explicitly; they lapse by expiry.
	SessionTTL = 24 * time.Hour

	// DefaultTokenDays is the expiry applied to the access token that
	// login lazily creates when none exists.
	DefaultTokenDays = 30

	secretLength = 32
	secretChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// neverExpireHorizon is the advisory expiry recorded on tokens marked
	// never-expire; validation skips the check entirely for them.
	neverExpireHorizon = 100 * 365 * 24 * time.Hour
)

var (
	// ErrInvalidCredentials is returned by Login on password mismatch.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidInput is returned by SetAccessToken for an empty secret
	// or an out-of-range expiry.
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrNoPasswordConfigured is returned by Login when the deployment
	// has no admin password; there is nothing to log in against.
	ErrNoPasswordConfigured = errors.New("auth: admin password not configured")
)

// AccessToken is the long-lived shared secret granting authorization
// independent of login sessions. At most one exists, under a singleton
// store key; replacing it discards the old one entirely.
type AccessToken struct {
	Secret      string     `json:"secret"`
	ExpiresAt   *time.Time `json:"expires_at"`
	NeverExpire bool       `json:"never_expire"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

// Session is the short-lived artifact created at successful login.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager validates the admin password and issues/validates sessions
// and access tokens. With no password configured the system is open:
// every request authorizes. Transient store errors during authorization
// are treated as authorization failure, never surfaced.
type Manager struct {
	kv       store.KV
	password string
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Manager. An empty password disables gating entirely.
func New(kv store.KV, password string) *Manager {
	return &Manager{kv: kv, password: password, now: time.Now}
}

// PasswordConfigured reports whether an admin password is set.
func (m *Manager) PasswordConfigured() bool { return m.password != "" }

// Login checks the password and, on success, lazily creates a default
// access token if none exists and always issues a fresh session with
// store TTL SessionTTL. It returns the session id and the current
// access token.
func (m *Manager) Login(ctx context.Context, password string) (string, *AccessToken, error) {
	if !m.PasswordConfigured() {
		return "", nil, ErrNoPasswordConfigured
	}
	if password != m.password {
		return "", nil, ErrInvalidCredentials
	}

	token, err := m.Token(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("auth: load token: %w", err)
	}
	if token == nil {
		expires := m.now().UTC().Add(DefaultTokenDays * 24 * time.Hour)
		token = &AccessToken{
			Secret:    randomSecret(),
			ExpiresAt: &expires,
			CreatedAt: m.now().UTC(),
		}
		if err := m.putToken(ctx, token); err != nil {
			return "", nil, fmt.Errorf("auth: store default token: %w", err)
		}
		slog.Info("auth: created default access token", "expires_at", expires)
	}

	session := Session{ID: uuid.NewString(), CreatedAt: m.now().UTC()}
	data, err := json.Marshal(session)
	if err != nil {
		return "", nil, fmt.Errorf("auth: marshal session: %w", err)
	}
	if err := m.kv.PutTTL(ctx, store.SessionKey(session.ID), data, SessionTTL); err != nil {
		return "", nil, fmt.Errorf("auth: store session: %w", err)
	}

	return session.ID, token, nil
}

// AuthorizeRequest reports whether r carries a live credential. The
// extraction strategies from Credentials are tried in priority order;
// the first that resolves to a live session or a matching, unexpired
// token wins. With no password configured every request authorizes.
func (m *Manager) AuthorizeRequest(ctx context.Context, r *http.Request) bool {
	if !m.PasswordConfigured() {
		return true
	}
	for _, cred := range Credentials(r) {
		switch cred.Kind {
		case KindSession:
			if m.sessionLive(ctx, cred.Value) {
				return true
			}
		case KindToken:
			if m.tokenMatches(ctx, cred.Value) {
				return true
			}
		}
	}
	return false
}

// Logout deletes every session credential presented on r, revoking it
// immediately instead of waiting for the store TTL. Requests carrying
// no session (or an already-dead one) succeed as a no-op; token
// credentials are untouched since the access token outlives logins.
func (m *Manager) Logout(ctx context.Context, r *http.Request) {
	for _, cred := range Credentials(r) {
		if cred.Kind != KindSession || cred.Value == "" {
			continue
		}
		if err := m.kv.Delete(ctx, store.SessionKey(cred.Value)); err != nil {
			slog.Warn("auth: session delete failed", "err", err)
		}
	}
}

// SetAccessToken replaces the singleton access token. The secret must
// be non-empty after trimming; expiresDays must be in [1,365] unless
// neverExpire is set, in which case the recorded expiry is advisory.
func (m *Manager) SetAccessToken(ctx context.Context, secret string, expiresDays int, neverExpire bool) (*AccessToken, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}

	var expires time.Time
	if neverExpire {
		expires = m.now().UTC().Add(neverExpireHorizon)
	} else {
		if expiresDays < 1 || expiresDays > 365 {
			return nil, fmt.Errorf("%w: expiry must be 1-365 days, got %d", ErrInvalidInput, expiresDays)
		}
		expires = m.now().UTC().Add(time.Duration(expiresDays) * 24 * time.Hour)
	}

	token := &AccessToken{
		Secret:      secret,
		ExpiresAt:   &expires,
		NeverExpire: neverExpire,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.putToken(ctx, token); err != nil {
		return nil, fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Token returns the current access token, or nil if none is configured.
func (m *Manager) Token(ctx context.Context) (*AccessToken, error) {
	data, err := m.kv.Get(ctx, store.AccessTokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var token AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("auth: decode token: %w", err)
	}
	return &token, nil
}

// sessionLive reports whether id resolves to a session still present in
// the store. Store errors count as not live.
func (m *Manager) sessionLive(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	_, err := m.kv.Get(ctx, store.SessionKey(id))
	return err == nil
}

// tokenMatches reports whether secret equals the configured token's
// secret and the token is not expired. A match updates last_used_at as
// a side effect; store errors count as no match.
func (m *Manager) tokenMatches(ctx context.Context, secret string) bool {
	if secret == "" {
		return false
	}
	token, err := m.Token(ctx)
	if err != nil || token == nil {
		return false
	}
	if token.Secret != secret {
		return false
	}
	if !token.NeverExpire {
		if token.ExpiresAt == nil || !token.ExpiresAt.After(m.now()) {
			return false
		}
	}

	used := m.now().UTC()
	token.LastUsedAt = &used
	if err := m.putToken(ctx, token); err != nil {
		// The credential already validated; a failed usage-time update
		// must not revoke the authorization.
		slog.Warn("auth: failed to record token use", "err", err)
	}
	return true
}

func (m *Manager) putToken(ctx context.Context, token *AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return m.kv.Put(ctx, store.AccessTokenKey, data)
}

// randomSecret returns a 32-character alphanumeric secret.
func randomSecret() string {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("auth: read random: %v", err))
	}
	out := make([]byte, secretLength)
	for i, b := range buf {
		out[i] = secretChars[int(b)%len(secretChars)]
	}
	return string(out)
}
