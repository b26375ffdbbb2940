package store

import (
	"context"
	"errors"
	"time"
)

// Well-known keys used by the pipeline and credential manager.
// Session keys are derived with SessionKey.
const (
	CollectionKey  = "collection_snapshot"
	RankedKey      = "ranked_snapshot"
	AccessTokenKey = "access_token"

	sessionPrefix = "session_"
)

// SessionKey returns the store key for the session with the given id.
func SessionKey(id string) string { return sessionPrefix + id }

// ErrNotFound is returned by Get when the key does not exist or its
// entry has expired.
var ErrNotFound = errors.New("store: key not found")

// KV is a durable string-key / opaque-value store with optional per-key
// expiry. Puts are atomic per key; there are no cross-key transactions.
// Expired entries behave as absent from Get even before eviction runs.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores or replaces the value for key with no expiry.
	Put(ctx context.Context, key string, value []byte) error

	// PutTTL stores or replaces the value for key, expiring after ttl.
	PutTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
