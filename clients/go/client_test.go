package client

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"delayq/config"
	"delayq/pkg/poller"
	"delayq/pkg/server"
	"delayq/storage"
)

var _ poller.Popper = (*Topic)(nil)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := server.NewServer(config.GetDefaultConfig(), storage.NewMemoryStorage(), logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	c, err := New(context.Background(), "bufnet", &Options{
		Insecure:    true,
		DialTimeout: time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		<-done
	})
	return c
}

func TestTopicPushPopCancel(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orders := c.Topic("orders")
	assert.Equal(t, "orders", orders.Topic())

	id, err := orders.PushDelay(ctx, 0, "o-1", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "o-1", id)

	// refresh with the same id replaces the body
	_, err = orders.PushDelay(ctx, 0, "o-1", []byte("second"))
	require.NoError(t, err)

	_, err = orders.PushDelay(ctx, 0, "o-2", []byte("gone"))
	require.NoError(t, err)
	require.NoError(t, orders.Cancel(ctx, "o-2"))

	bodies, err := orders.PopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Equal(t, "second", string(bodies[0]))

	later, err := orders.Push(ctx, []byte("later"))
	require.NoError(t, err)
	assert.NotEmpty(t, later)

	st, err := orders.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Pending)
	assert.Equal(t, int64(0), st.Due)
}

func TestTopicDrivesPoller(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobs := c.Topic("jobs")
	_, err := jobs.PushDelay(ctx, 0, "j-1", []byte("work"))
	require.NoError(t, err)

	got := make(chan string, 1)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := poller.New(jobs, func(_ context.Context, body []byte) error {
		select {
		case got <- string(body):
		default:
		}
		return nil
	}, poller.WithInterval(10*time.Millisecond), poller.WithLogger(logger))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = p.Run(runCtx) }()

	select {
	case body := <-got:
		assert.Equal(t, "work", body)
	case <-ctx.Done():
		t.Fatal("poller never delivered")
	}
}
