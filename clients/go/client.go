package client

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	delayqv1 "delayq/api/delayqv1"
)

// Client is a typed SDK for the delayq service.
type Client struct {
	conn  *grpc.ClientConn
	Queue delayqv1.DelayQueueClient
}

// Options control Client behavior.
type Options struct {
	// DialTimeout is the timeout for establishing the initial connection.
	DialTimeout time.Duration
	// Insecure skips TLS (default true for local dev).
	Insecure bool
	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// New dials the delayq server at address (host:port) and returns a Client.
func New(ctx context.Context, address string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{Insecure: true, DialTimeout: 5 * time.Second}
	}
	var dialOpts []grpc.DialOption
	if opts.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, opts.DialOptions...)
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}
	conn, err := grpc.DialContext(ctx, address, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:  conn,
		Queue: delayqv1.NewDelayQueueClient(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Topic returns a handle bound to one topic.
func (c *Client) Topic(topic string) *Topic {
	return &Topic{c: c.Queue, topic: topic}
}

// Topic mirrors the delay queue API over the wire for a single topic.
type Topic struct {
	c     delayqv1.DelayQueueClient
	topic string
}

func (t *Topic) Topic() string { return t.topic }

// Push schedules body under a generated id with the server's default delay.
func (t *Topic) Push(ctx context.Context, body []byte) (string, error) {
	resp, err := t.c.Push(ctx, &delayqv1.PushRequest{Topic: t.topic, Body: body})
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}

// PushID schedules body under id with the server's default delay.
func (t *Topic) PushID(ctx context.Context, id string, body []byte) (string, error) {
	resp, err := t.c.Push(ctx, &delayqv1.PushRequest{Topic: t.topic, Id: id, Body: body})
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}

// PushDelay schedules body under id after delay.
func (t *Topic) PushDelay(ctx context.Context, delay time.Duration, id string, body []byte) (string, error) {
	ms := delay.Milliseconds()
	resp, err := t.c.Push(ctx, &delayqv1.PushRequest{Topic: t.topic, Id: id, DelayMs: &ms, Body: body})
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}

// PopN returns up to batchSize due bodies. Zero uses the server default.
func (t *Topic) PopN(ctx context.Context, batchSize int) ([][]byte, error) {
	resp, err := t.c.Pop(ctx, &delayqv1.PopRequest{Topic: t.topic, BatchSize: int32(batchSize)})
	if err != nil {
		return nil, err
	}
	return resp.Bodies, nil
}

func (t *Topic) Cancel(ctx context.Context, id string) error {
	_, err := t.c.Cancel(ctx, &delayqv1.CancelRequest{Topic: t.topic, Id: id})
	return err
}

func (t *Topic) Stats(ctx context.Context) (*delayqv1.StatsResponse, error) {
	return t.c.Stats(ctx, &delayqv1.StatsRequest{Topic: t.topic})
}
