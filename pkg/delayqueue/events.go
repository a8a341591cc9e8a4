package delayqueue

import "sync"

// EventKind classifies what happened to a single message.
type EventKind int

const (
	// EventEnqueued: both writes of a push succeeded.
	EventEnqueued EventKind = iota
	// EventEnqueueSkipped: push was called with an empty body and did nothing.
	EventEnqueueSkipped
	// EventEnqueueFailed: a push write failed. The caller saw no error.
	EventEnqueueFailed
	// EventDelivered: a body was returned by Pop.
	EventDelivered
	// EventPollItemSkipped: a malformed or not-yet-due entry was left in the index.
	EventPollItemSkipped
	// EventFetchMiss: the body was absent at consumption time and the entry was cleaned up.
	EventFetchMiss
	// EventFetchFailed: reading the body failed; the entry stays due for a later poll.
	EventFetchFailed
	// EventCleanupFailed: removing a consumed entry from one of the stores failed.
	EventCleanupFailed
)

var eventNames = [...]string{
	EventEnqueued:        "enqueued",
	EventEnqueueSkipped:  "enqueue_skipped",
	EventEnqueueFailed:   "enqueue_failed",
	EventDelivered:       "delivered",
	EventPollItemSkipped: "poll_item_skipped",
	EventFetchMiss:       "fetch_miss",
	EventFetchFailed:     "fetch_failed",
	EventCleanupFailed:   "cleanup_failed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event describes one per-message outcome.
type Event struct {
	Kind  EventKind
	Topic string
	ID    string
	Score float64
	Err   error
}

// Observer receives events synchronously from Push and Pop. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// Counter is an Observer that tallies events by kind.
type Counter struct {
	mu     sync.Mutex
	counts map[EventKind]int64
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[EventKind]int64)}
}

func (c *Counter) Observe(e Event) {
	c.mu.Lock()
	c.counts[e.Kind]++
	c.mu.Unlock()
}

// Count returns the number of events seen of the given kind.
func (c *Counter) Count(kind EventKind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

// Snapshot returns a copy of all counts keyed by event name.
func (c *Counter) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k.String()] = v
	}
	return out
}

// multiObserver fans out to several observers in order.
type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}
