package poller

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayq/config"
	"delayq/pkg/delayqueue"
	"delayq/storage"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func memStore(t *testing.T) storage.Storage {
	s := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) handle(_ context.Context, body []byte) error {
	c.mu.Lock()
	c.seen = append(c.seen, string(body))
	c.mu.Unlock()
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.seen...)
	sort.Strings(out)
	return out
}

func TestPollerDeliversDueMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := delayqueue.New(memStore(t), "jobs", delayqueue.WithLogger(quietLogger()))
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		q.PushDelay(ctx, 0, id, []byte(id))
	}

	c := &collector{}
	p := New(q, c.handle, WithInterval(5*time.Millisecond), WithBatchSize(2), WithLogger(quietLogger()))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(c.snapshot()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, c.snapshot())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

type scriptedPopper struct {
	mu    sync.Mutex
	calls int
	steps []func() ([][]byte, error)
}

func (s *scriptedPopper) Topic() string { return "scripted" }

func (s *scriptedPopper) PopN(context.Context, int) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.steps) {
		return s.steps[i]()
	}
	return nil, nil
}

func TestPollerSurvivesPollAndHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	popper := &scriptedPopper{steps: []func() ([][]byte, error){
		func() ([][]byte, error) { return nil, delayqueue.ErrPollFailed },
		func() ([][]byte, error) { return [][]byte{[]byte("bad"), []byte("good")}, nil },
	}}

	var mu sync.Mutex
	var handled []string
	h := func(_ context.Context, body []byte) error {
		mu.Lock()
		handled = append(handled, string(body))
		mu.Unlock()
		if string(body) == "bad" {
			return errors.New("boom")
		}
		return nil
	}

	p := New(popper, h, WithInterval(time.Millisecond), WithLogger(quietLogger()))
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"bad", "good"}, handled)
}

func TestPollReportsFullBatch(t *testing.T) {
	popper := &scriptedPopper{steps: []func() ([][]byte, error){
		func() ([][]byte, error) { return [][]byte{[]byte("1"), []byte("2")}, nil },
		func() ([][]byte, error) { return [][]byte{[]byte("3")}, nil },
	}}
	c := &collector{}
	p := New(popper, c.handle, WithBatchSize(2), WithLogger(quietLogger()))

	assert.True(t, p.Poll(context.Background(), nil))
	assert.False(t, p.Poll(context.Background(), nil))
	assert.Equal(t, []string{"1", "2", "3"}, c.snapshot())
	assert.Contains(t, p.Name(), "poller-")
}

func TestMultipleWorkersDeliverAtLeastOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := delayqueue.New(memStore(t), "jobs", delayqueue.WithLogger(quietLogger()))
	require.NoError(t, err)
	q.PushDelay(ctx, 0, "only", []byte("only"))

	c := &collector{}
	p := New(q, c.handle, WithInterval(time.Millisecond), WithWorkers(4), WithLogger(quietLogger()))
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(c.snapshot()) >= 1
	}, 2*time.Second, time.Millisecond)
	for _, body := range c.snapshot() {
		assert.Equal(t, "only", body)
	}
}

func TestFromConfig(t *testing.T) {
	p := New(&scriptedPopper{}, func(context.Context, []byte) error { return nil },
		append(FromConfig(config.PollerConfig{IntervalMs: 250, Workers: 3}), WithLogger(quietLogger()))...)
	assert.Equal(t, 250*time.Millisecond, p.opts.Interval)
	assert.Equal(t, 3, p.opts.Workers)

	// zero values keep the defaults
	p = New(&scriptedPopper{}, func(context.Context, []byte) error { return nil }, FromConfig(config.PollerConfig{})...)
	assert.Equal(t, time.Second, p.opts.Interval)
	assert.Equal(t, 1, p.opts.Workers)
}

func TestPollFallsBackToQueueBatchSize(t *testing.T) {
	ctx := context.Background()
	q, err := delayqueue.New(memStore(t), "jobs",
		delayqueue.WithBatchSize(2), delayqueue.WithLogger(quietLogger()))
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		q.PushDelay(ctx, 0, id, []byte(id))
	}

	c := &collector{}
	p := New(q, c.handle, WithLogger(quietLogger()))

	assert.True(t, p.Poll(ctx, nil))
	assert.False(t, p.Poll(ctx, nil))
	assert.Equal(t, []string{"a", "b", "c"}, c.snapshot())
}

func TestPollWithUnknownBatchDrainsUntilEmpty(t *testing.T) {
	popper := &scriptedPopper{steps: []func() ([][]byte, error){
		func() ([][]byte, error) { return [][]byte{[]byte("1")}, nil },
		func() ([][]byte, error) { return nil, nil },
	}}
	c := &collector{}
	p := New(popper, c.handle, WithLogger(quietLogger()))

	assert.True(t, p.Poll(context.Background(), nil))
	assert.False(t, p.Poll(context.Background(), nil))
	assert.Equal(t, []string{"1"}, c.snapshot())
}
