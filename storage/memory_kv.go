package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage provides an in-memory store with TTL'd values and sorted sets.
type MemoryStorage struct {
	mu    sync.RWMutex
	data  map[string]memEntry
	zsets map[string]map[string]float64
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type memEntry struct {
	val       []byte
	expiresAt time.Time // zero means no expiry
}

func NewMemoryStorage() *MemoryStorage {
	m := &MemoryStorage{
		data:  make(map[string]memEntry),
		zsets: make(map[string]map[string]float64),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go m.janitor()
	return m
}

// SetClock replaces the time source used for expiry. Tests only.
func (m *MemoryStorage) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStorage) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStorage) janitor() {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.mu.Lock()
			now := m.now()
			for k, e := range m.data {
				if e.expired(now) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Content operations

func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.data[key] = memEntry{val: append([]byte(nil), value...), expiresAt: exp}
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	m.mu.RLock()
	e, ok := m.data[key]
	now := m.now()
	m.mu.RUnlock()
	if !ok || e.expired(now) {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, keys ...string) (int, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	cnt := 0
	now := m.now()
	for _, k := range keys {
		if e, ok := m.data[k]; ok {
			delete(m.data, k)
			if !e.expired(now) {
				cnt++
			}
		}
	}
	return cnt, nil
}

func (m *MemoryStorage) TTL(ctx context.Context, key string) (time.Duration, error) {
	_ = ctx
	m.mu.RLock()
	e, ok := m.data[key]
	now := m.now()
	m.mu.RUnlock()
	if !ok || e.expired(now) {
		return 0, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(now), nil
}

// Sorted set operations

func (m *MemoryStorage) ZAdd(ctx context.Context, key string, score float64, member string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.zsets[key]
	if !ok {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	set[member] = score
	return nil
}

func (m *MemoryStorage) ZRem(ctx context.Context, key string, members ...string) (int, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.zsets[key]
	if !ok {
		return 0, nil
	}
	cnt := 0
	for _, member := range members {
		if _, ok := set[member]; ok {
			delete(set, member)
			cnt++
		}
	}
	if len(set) == 0 {
		delete(m.zsets, key)
	}
	return cnt, nil
}

func (m *MemoryStorage) ZRangeByScore(ctx context.Context, key string, min, max float64, offset, count int64) ([]ScoredMember, error) {
	_ = ctx
	m.mu.RLock()
	res := make([]ScoredMember, 0, len(m.zsets[key]))
	for member, score := range m.zsets[key] {
		if score >= min && score <= max {
			res = append(res, ScoredMember{Member: member, Score: score})
		}
	}
	m.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Score != res[j].Score {
			return res[i].Score < res[j].Score
		}
		return res[i].Member < res[j].Member
	})

	if offset > 0 {
		if offset >= int64(len(res)) {
			return []ScoredMember{}, nil
		}
		res = res[offset:]
	}
	if count > 0 && count < int64(len(res)) {
		res = res[:count]
	}
	return res, nil
}

func (m *MemoryStorage) ZCard(ctx context.Context, key string) (int64, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryStorage) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, score := range m.zsets[key] {
		if score >= min && score <= max {
			n++
		}
	}
	return n, nil
}
