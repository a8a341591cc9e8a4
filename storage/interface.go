package storage

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("storage: closed")

// ContentStore holds message bodies keyed by string with a per-entry expiration.
// Every method is atomic on its own; nothing spans more than one call.
type ContentStore interface {
	// Set writes value under key, replacing any previous value. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value and whether it was found. Expired keys are reported as not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes keys and returns how many existed. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) (int, error)
	// TTL returns the remaining lifetime. Negative means no expiry, zero means missing or expired.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// VisibilityIndex is a sorted set of members ordered by score.
type VisibilityIndex interface {
	// ZAdd inserts member or overwrites its score.
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRem removes members and returns how many existed.
	ZRem(ctx context.Context, key string, members ...string) (int, error)
	// ZRangeByScore returns members with min <= score <= max in ascending score
	// order, skipping offset entries and returning at most count (count <= 0 means all).
	ZRangeByScore(ctx context.Context, key string, min, max float64, offset, count int64) ([]ScoredMember, error)
	// ZCard returns the number of members.
	ZCard(ctx context.Context, key string) (int64, error)
	// ZCount returns the number of members with min <= score <= max.
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)
}

// Storage is a backend able to serve both halves of a delay queue.
type Storage interface {
	ContentStore
	VisibilityIndex

	Close() error
}

// ScoredMember is one sorted-set entry. An empty Member marks an entry the
// backend could not decode.
type ScoredMember struct {
	Member string
	Score  float64
}
