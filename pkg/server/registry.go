package server

import (
	"errors"
	"fmt"
	"sync"

	"delayq/pkg/delayqueue"
	"delayq/storage"
)

// ErrTooManyTopics is returned once a registry holds its maximum number of topics.
var ErrTooManyTopics = errors.New("too many topics")

// Registry lazily creates one DelayQueue per topic over a shared store.
type Registry struct {
	store     storage.Storage
	opts      []delayqueue.Option
	maxTopics int

	mu     sync.Mutex
	topics map[string]*topicQueue
}

type topicQueue struct {
	queue   *delayqueue.DelayQueue
	counter *delayqueue.Counter
}

// NewRegistry returns a registry applying opts to every queue it builds. It
// serves at most maxTopics topics; zero means no limit.
func NewRegistry(store storage.Storage, maxTopics int, opts ...delayqueue.Option) *Registry {
	return &Registry{
		store:     store,
		opts:      opts,
		maxTopics: maxTopics,
		topics:    make(map[string]*topicQueue),
	}
}

// Queue returns the queue for topic, creating it on first use.
func (r *Registry) Queue(topic string) (*delayqueue.DelayQueue, *delayqueue.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tq, ok := r.topics[topic]; ok {
		return tq.queue, tq.counter, nil
	}
	if r.maxTopics > 0 && len(r.topics) >= r.maxTopics {
		return nil, nil, fmt.Errorf("%w: limit is %d", ErrTooManyTopics, r.maxTopics)
	}

	counter := delayqueue.NewCounter()
	opts := append(append([]delayqueue.Option{}, r.opts...), delayqueue.WithObserver(counter))
	q, err := delayqueue.New(r.store, topic, opts...)
	if err != nil {
		return nil, nil, err
	}
	r.topics[topic] = &topicQueue{queue: q, counter: counter}
	return q, counter, nil
}

// Topics returns the topics seen so far.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	return out
}
