package delayqueue

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"delayq/storage"
)

const timeLayout = "2006-01-02 15:04:05"

// DelayQueue is one topic's delay queue. It holds no state beyond its
// configuration and is safe for concurrent use.
type DelayQueue struct {
	store    storage.Storage
	topic    string
	indexKey string
	opts     Options
	log      logrus.FieldLogger
}

// Stats is a point-in-time view of a topic's index.
type Stats struct {
	Topic   string
	Pending int64
	Due     int64
}

// New returns a queue for topic backed by store.
func New(store storage.Storage, topic string, opts ...Option) (*DelayQueue, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DelayQueue{
		store:    store,
		topic:    topic,
		indexKey: indexKey(o.KeyPrefix, topic),
		opts:     o,
		log:      o.Logger.WithField("topic", topic),
	}, nil
}

// Topic returns the queue's topic.
func (q *DelayQueue) Topic() string { return q.topic }

// BatchSize is the batch Pop uses.
func (q *DelayQueue) BatchSize() int { return q.opts.BatchSize }

// Push schedules body under a fresh id with the default delay.
func (q *DelayQueue) Push(ctx context.Context, body []byte) string {
	return q.PushDelay(ctx, q.opts.Delay, "", body)
}

// PushID schedules body under id with the default delay, replacing any
// pending message with the same id.
func (q *DelayQueue) PushID(ctx context.Context, id string, body []byte) string {
	return q.PushDelay(ctx, q.opts.Delay, id, body)
}

// PushDelay schedules body under id to become visible after delay. An empty id
// gets a generated one. A blank body is a no-op and returns "", matching what
// Pop would do with it.
//
// The returned id is not an acknowledgment: write failures are logged and
// reported to the Observer, never returned.
func (q *DelayQueue) PushDelay(ctx context.Context, delay time.Duration, id string, body []byte) string {
	if id == "" {
		id = q.opts.IDGenerator()
	}
	log := q.log.WithFields(logrus.Fields{"id": id, "delay_ms": delay.Milliseconds()})
	log.Info("delay queue push")

	if len(bytes.TrimSpace(body)) == 0 {
		log.Info("delay queue push skipped: blank body")
		q.emit(Event{Kind: EventEnqueueSkipped, ID: id})
		return ""
	}

	msg := newMessage(id, delay, body, q.opts.Clock(), q.opts.Grace)
	if err := q.write(ctx, msg); err != nil {
		log.WithError(err).Info("delay queue push failed")
		q.emit(Event{Kind: EventEnqueueFailed, ID: id, Score: float64(msg.VisibleAt()), Err: err})
		return id
	}

	log.WithFields(logrus.Fields{
		"created":  time.UnixMilli(msg.CreateTime).Format(timeLayout),
		"consumer": time.UnixMilli(msg.VisibleAt()).Format(timeLayout),
	}).Info("delay queue pushed")
	q.emit(Event{Kind: EventEnqueued, ID: id, Score: float64(msg.VisibleAt())})
	return id
}

// write stores the body, then the score. The pair is not atomic: a failure
// after the first write leaves a body that expires on its own.
func (q *DelayQueue) write(ctx context.Context, msg Message) error {
	ttl := time.Duration(msg.TTL)*time.Second + q.opts.PoolExtension
	if err := q.store.Set(ctx, q.contentKey(msg.ID), msg.Body, ttl); err != nil {
		return fmt.Errorf("failed to write body: %w", err)
	}
	if err := q.store.ZAdd(ctx, q.indexKey, float64(msg.VisibleAt()), msg.ID); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Pop returns up to the configured batch size of due bodies.
func (q *DelayQueue) Pop(ctx context.Context) ([][]byte, error) {
	return q.PopN(ctx, q.opts.BatchSize)
}

// PopN returns up to batchSize due bodies, earliest first, removing each from
// both stores. Per-item problems are logged and observed, never returned; only
// a failed index query yields an error, wrapping ErrPollFailed.
//
// A body may be returned to more than one concurrent caller.
func (q *DelayQueue) PopN(ctx context.Context, batchSize int) ([][]byte, error) {
	if batchSize <= 0 {
		batchSize = q.opts.BatchSize
	}

	entries, err := q.store.ZRangeByScore(ctx, q.indexKey, 0, float64(q.nowMs()), 0, int64(batchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: topic %s: %w", ErrPollFailed, q.topic, err)
	}

	current := q.nowMs()
	bodies := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if body, ok := q.consume(ctx, entry, current); ok {
			bodies = append(bodies, body)
		}
	}
	return bodies, nil
}

func (q *DelayQueue) consume(ctx context.Context, entry storage.ScoredMember, current int64) ([]byte, bool) {
	id := entry.Member
	log := q.log.WithFields(logrus.Fields{"id": id, "score": entry.Score})

	if id == "" || math.IsNaN(entry.Score) {
		log.Info("delay queue pop skipped malformed entry")
		q.emit(Event{Kind: EventPollItemSkipped, ID: id, Score: entry.Score})
		return nil, false
	}
	if entry.Score > float64(current) {
		log.Info("delay queue pop skipped entry not yet due")
		q.emit(Event{Kind: EventPollItemSkipped, ID: id, Score: entry.Score})
		return nil, false
	}

	body, found, err := q.store.Get(ctx, q.contentKey(id))
	if err != nil {
		// keep the body but move the id off the head of the index so later
		// due entries are not starved while the fetch keeps failing
		retryAt := float64(current + q.opts.RetryDelay.Milliseconds())
		log.WithError(err).WithField("retry_at", int64(retryAt)).Warn("delay queue pop fetch failed, rescheduled")
		q.emit(Event{Kind: EventFetchFailed, ID: id, Score: entry.Score, Err: err})
		if zerr := q.store.ZAdd(ctx, q.indexKey, retryAt, id); zerr != nil {
			log.WithError(zerr).Warn("delay queue reschedule failed")
		}
		return nil, false
	}

	if !found || len(bytes.TrimSpace(body)) == 0 {
		log.Info("delay queue pop miss: consumed elsewhere or expired")
		q.emit(Event{Kind: EventFetchMiss, ID: id, Score: entry.Score})
		_ = q.remove(ctx, id)
		return nil, false
	}

	log.WithField("consumer", time.UnixMilli(q.nowMs()).Format(timeLayout)).Info("delay queue pop")
	q.emit(Event{Kind: EventDelivered, ID: id, Score: entry.Score})
	_ = q.remove(ctx, id)
	return body, true
}

// Cancel removes a pending message. Cancelling an unknown id is not an error.
func (q *DelayQueue) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return q.remove(ctx, id)
}

// remove deletes id from the index, then its body. Both deletes are
// idempotent; the first failure is returned after both are attempted.
func (q *DelayQueue) remove(ctx context.Context, id string) error {
	var first error
	if _, err := q.store.ZRem(ctx, q.indexKey, id); err != nil {
		first = fmt.Errorf("failed to remove index entry: %w", err)
	}
	if _, err := q.store.Delete(ctx, q.contentKey(id)); err != nil && first == nil {
		first = fmt.Errorf("failed to remove body: %w", err)
	}
	if first != nil {
		q.log.WithField("id", id).WithError(first).Warn("delay queue cleanup failed")
		q.emit(Event{Kind: EventCleanupFailed, ID: id, Err: first})
	}
	return first
}

// Stats reports how many ids are indexed and how many of those are due.
func (q *DelayQueue) Stats(ctx context.Context) (Stats, error) {
	pending, err := q.store.ZCard(ctx, q.indexKey)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count pending: %w", err)
	}
	due, err := q.store.ZCount(ctx, q.indexKey, 0, float64(q.nowMs()))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count due: %w", err)
	}
	return Stats{Topic: q.topic, Pending: pending, Due: due}, nil
}

func (q *DelayQueue) contentKey(id string) string {
	return contentKey(q.opts.KeyPrefix, q.topic, id)
}

func (q *DelayQueue) nowMs() int64 {
	return q.opts.Clock().UnixMilli()
}

func (q *DelayQueue) emit(e Event) {
	e.Topic = q.topic
	q.opts.Observer.Observe(e)
}
