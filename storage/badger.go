package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	zsetPrefix   = "z\x00"
	zsetMembers  = "\x00m\x00"
	zsetScores   = "\x00s\x00"
	maxTxnRetry  = 16
	defaultGCGap = 5 * time.Minute
)

// BadgerStorage implements Storage using BadgerDB. Sorted sets are kept as
// two keyspaces per set: member -> score, and an ordered score index.
type BadgerStorage struct {
	db   *badger.DB
	stop chan struct{}
	once sync.Once
}

// NewBadgerStorage creates a new BadgerDB storage instance
func NewBadgerStorage(dataDir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR)
	return NewBadgerStorageWithOptions(opts, defaultGCGap)
}

// NewBadgerStorageWithOptions opens badger with caller-supplied options.
// gcInterval <= 0 disables the value log GC loop.
func NewBadgerStorageWithOptions(opts badger.Options, gcInterval time.Duration) (*BadgerStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &BadgerStorage{db: db, stop: make(chan struct{})}
	if gcInterval > 0 {
		go s.runGC(gcInterval)
	}
	return s, nil
}

// runGC runs the garbage collector periodically
func (s *BadgerStorage) runGC(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.db.RunValueLogGC(0.7)
		}
	}
}

// update runs fn in a read-write transaction, retrying on write conflicts so
// each call behaves as a single atomic operation.
func (s *BadgerStorage) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetry; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Set stores a key-value pair with optional TTL
func (s *BadgerStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves a value by key
func (s *BadgerStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		found = true
		value, err = item.ValueCopy(nil)
		return err
	})

	return value, found, err
}

// Delete removes one or more keys
func (s *BadgerStorage) Delete(ctx context.Context, keys ...string) (int, error) {
	deleted := 0

	err := s.update(func(txn *badger.Txn) error {
		deleted = 0
		for _, key := range keys {
			if _, err := txn.Get([]byte(key)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// TTL returns remaining time to live for a key
func (s *BadgerStorage) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		expiresAt := item.ExpiresAt()
		if expiresAt == 0 {
			ttl = -1 // Never expires
			return nil
		}
		if remaining := time.Until(time.Unix(int64(expiresAt), 0)); remaining > 0 {
			ttl = remaining
		}
		return nil
	})

	return ttl, err
}

// ZAdd inserts or rescores a member
func (s *BadgerStorage) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.update(func(txn *badger.Txn) error {
		mk := zsetMemberKey(key, member)
		item, err := txn.Get(mk)
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(zsetScoreKey(key, decodeScore(old), member)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(mk, encodeScore(score)); err != nil {
			return err
		}
		return txn.Set(zsetScoreKey(key, score, member), nil)
	})
}

// ZRem removes members from a sorted set
func (s *BadgerStorage) ZRem(ctx context.Context, key string, members ...string) (int, error) {
	removed := 0

	err := s.update(func(txn *badger.Txn) error {
		removed = 0
		for _, member := range members {
			mk := zsetMemberKey(key, member)
			item, err := txn.Get(mk)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(zsetScoreKey(key, decodeScore(old), member)); err != nil {
				return err
			}
			if err := txn.Delete(mk); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	return removed, err
}

// ZRangeByScore walks the score index from min upward
func (s *BadgerStorage) ZRangeByScore(ctx context.Context, key string, min, max float64, offset, count int64) ([]ScoredMember, error) {
	res := []ScoredMember{}

	err := s.scanScores(key, min, max, func(sm ScoredMember) bool {
		if offset > 0 {
			offset--
			return true
		}
		res = append(res, sm)
		return count <= 0 || int64(len(res)) < count
	})

	return res, err
}

// ZCard counts members of a sorted set
func (s *BadgerStorage) ZCard(ctx context.Context, key string) (int64, error) {
	var n int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(zsetPrefix + key + zsetMembers)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})

	return n, err
}

// ZCount counts members scored within [min, max]
func (s *BadgerStorage) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	var n int64
	err := s.scanScores(key, min, max, func(ScoredMember) bool {
		n++
		return true
	})
	return n, err
}

func (s *BadgerStorage) scanScores(key string, min, max float64, fn func(ScoredMember) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(zsetPrefix + key + zsetScores)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		start := append(append([]byte{}, prefix...), encodeScore(min)...)
		for it.Seek(start); it.Valid(); it.Next() {
			k := it.Item().Key()
			if len(k) < len(prefix)+8 {
				continue
			}
			score := decodeScore(k[len(prefix) : len(prefix)+8])
			if score > max {
				return nil
			}
			member := string(k[len(prefix)+8:])
			if !fn(ScoredMember{Member: member, Score: score}) {
				return nil
			}
		}
		return nil
	})
}

// Close closes the database connection
func (s *BadgerStorage) Close() error {
	s.once.Do(func() { close(s.stop) })
	return s.db.Close()
}

func zsetMemberKey(key, member string) []byte {
	var b bytes.Buffer
	b.WriteString(zsetPrefix)
	b.WriteString(key)
	b.WriteString(zsetMembers)
	b.WriteString(member)
	return b.Bytes()
}

func zsetScoreKey(key string, score float64, member string) []byte {
	var b bytes.Buffer
	b.WriteString(zsetPrefix)
	b.WriteString(key)
	b.WriteString(zsetScores)
	b.Write(encodeScore(score))
	b.WriteString(member)
	return b.Bytes()
}

// encodeScore maps a float64 onto 8 bytes whose byte order matches numeric order.
func encodeScore(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

func decodeScore(b []byte) float64 {
	if len(b) < 8 {
		return math.NaN()
	}
	bits := binary.BigEndian.Uint64(b[:8])
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
