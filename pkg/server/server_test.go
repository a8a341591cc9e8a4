package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	delayqv1 "delayq/api/delayqv1"
	"delayq/config"
	"delayq/storage"
)

func startTestServer(t *testing.T) (delayqv1.DelayQueueClient, *Server) {
	t.Helper()
	return startTestServerWithConfig(t, config.GetDefaultConfig())
}

func startTestServerWithConfig(t *testing.T, cfg *config.Config) (delayqv1.DelayQueueClient, *Server) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	srv, err := NewServer(cfg, store, logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return delayqv1.NewDelayQueueClient(conn), srv
}

func int64p(v int64) *int64 { return &v }

func TestPushPopRoundTrip(t *testing.T) {
	client, srv := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Push(ctx, &delayqv1.PushRequest{Topic: "orders", Id: "o-1", DelayMs: int64p(0), Body: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "o-1", resp.Id)

	popped, err := client.Pop(ctx, &delayqv1.PopRequest{Topic: "orders"})
	require.NoError(t, err)
	require.Len(t, popped.Bodies, 1)
	assert.Equal(t, "hello", string(popped.Bodies[0]))

	popped, err = client.Pop(ctx, &delayqv1.PopRequest{Topic: "orders"})
	require.NoError(t, err)
	assert.Empty(t, popped.Bodies)

	assert.Equal(t, []string{"orders"}, srv.Registry().Topics())
}

func TestPushGeneratesIDAndHoldsUntilDue(t *testing.T) {
	client, _ := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Push(ctx, &delayqv1.PushRequest{Topic: "orders", Body: []byte("later")})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Id)

	popped, err := client.Pop(ctx, &delayqv1.PopRequest{Topic: "orders"})
	require.NoError(t, err)
	assert.Empty(t, popped.Bodies)

	stats, err := client.Stats(ctx, &delayqv1.StatsRequest{Topic: "orders"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(0), stats.Due)
}

func TestPushEmptyBodyReturnsNoID(t *testing.T) {
	client, _ := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Push(ctx, &delayqv1.PushRequest{Topic: "orders", Id: "x", DelayMs: int64p(0)})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Id)

	stats, err := client.Stats(ctx, &delayqv1.StatsRequest{Topic: "orders"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(1), stats.Events["enqueue_skipped"])
}

func TestEmptyTopicIsInvalidArgument(t *testing.T) {
	client, _ := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Push(ctx, &delayqv1.PushRequest{Body: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Pop(ctx, &delayqv1.PopRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Cancel(ctx, &delayqv1.CancelRequest{Topic: "orders"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCancelAndStatsEvents(t *testing.T) {
	client, _ := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range []string{"a", "b"} {
		_, err := client.Push(ctx, &delayqv1.PushRequest{Topic: "orders", Id: id, DelayMs: int64p(0), Body: []byte(id)})
		require.NoError(t, err)
	}

	_, err := client.Cancel(ctx, &delayqv1.CancelRequest{Topic: "orders", Id: "a"})
	require.NoError(t, err)
	// unknown ids are fine
	_, err = client.Cancel(ctx, &delayqv1.CancelRequest{Topic: "orders", Id: "missing"})
	require.NoError(t, err)

	popped, err := client.Pop(ctx, &delayqv1.PopRequest{Topic: "orders", BatchSize: 10})
	require.NoError(t, err)
	require.Len(t, popped.Bodies, 1)
	assert.Equal(t, "b", string(popped.Bodies[0]))

	stats, err := client.Stats(ctx, &delayqv1.StatsRequest{Topic: "orders"})
	require.NoError(t, err)
	assert.Equal(t, "orders", stats.Topic)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(2), stats.Events["enqueued"])
	assert.Equal(t, int64(1), stats.Events["delivered"])
}

func TestTopicLimit(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Server.MaxTopics = 2
	client, srv := startTestServerWithConfig(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, topic := range []string{"a", "b"} {
		_, err := client.Stats(ctx, &delayqv1.StatsRequest{Topic: topic})
		require.NoError(t, err)
	}

	_, err := client.Push(ctx, &delayqv1.PushRequest{Topic: "c", Body: []byte("x")})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// known topics keep working
	_, err = client.Push(ctx, &delayqv1.PushRequest{Topic: "a", DelayMs: int64p(0), Body: []byte("x")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, srv.Registry().Topics())
}

func TestRegistryWithoutLimit(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := NewRegistry(store, 0)

	for i := 0; i < 50; i++ {
		_, _, err := r.Queue(fmt.Sprintf("topic-%d", i))
		require.NoError(t, err)
	}
	assert.Len(t, r.Topics(), 50)

	q1, c1, err := r.Queue("topic-7")
	require.NoError(t, err)
	q2, c2, err := r.Queue("topic-7")
	require.NoError(t, err)
	assert.Same(t, q1, q2)
	assert.Same(t, c1, c2)

	limited := NewRegistry(store, 1)
	_, _, err = limited.Queue("x")
	require.NoError(t, err)
	_, _, err = limited.Queue("y")
	assert.ErrorIs(t, err, ErrTooManyTopics)
}
