package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CompositeStorage routes content operations to one backend and sorted-set
// operations to another, e.g. bodies in memory and the index in Badger.
type CompositeStorage struct {
	content      ContentStore
	index        VisibilityIndex
	closers      []func() error
	contentLabel string
	indexLabel   string
}

// NewCompositeStorage combines two backends. Both are closed by Close; the
// same backend passed twice is closed once.
func NewCompositeStorage(content, index Storage, contentLabel, indexLabel string) *CompositeStorage {
	cs := &CompositeStorage{
		content:      content,
		index:        index,
		contentLabel: contentLabel,
		indexLabel:   indexLabel,
	}
	cs.closers = append(cs.closers, content.Close)
	if content != index {
		cs.closers = append(cs.closers, index.Close)
	}
	return cs
}

// Close closes all underlying resources.
func (c *CompositeStorage) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ------- Content operations -------

func (c *CompositeStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.content.Set(ctx, key, value, ttl)
}

func (c *CompositeStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.content.Get(ctx, key)
}

func (c *CompositeStorage) Delete(ctx context.Context, keys ...string) (int, error) {
	return c.content.Delete(ctx, keys...)
}

func (c *CompositeStorage) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.content.TTL(ctx, key)
}

// ------- Index operations -------

func (c *CompositeStorage) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.index.ZAdd(ctx, key, score, member)
}

func (c *CompositeStorage) ZRem(ctx context.Context, key string, members ...string) (int, error) {
	return c.index.ZRem(ctx, key, members...)
}

func (c *CompositeStorage) ZRangeByScore(ctx context.Context, key string, min, max float64, offset, count int64) ([]ScoredMember, error) {
	return c.index.ZRangeByScore(ctx, key, min, max, offset, count)
}

func (c *CompositeStorage) ZCard(ctx context.Context, key string) (int64, error) {
	return c.index.ZCard(ctx, key)
}

func (c *CompositeStorage) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	return c.index.ZCount(ctx, key, min, max)
}

// String implements fmt.Stringer for debugging
func (c *CompositeStorage) String() string {
	return fmt.Sprintf("CompositeStorage{content=%s, index=%s}", c.contentLabel, c.indexLabel)
}
