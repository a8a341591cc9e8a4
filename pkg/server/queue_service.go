package server

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	delayqv1 "delayq/api/delayqv1"
	"delayq/pkg/delayqueue"
)

// QueueService implements the DelayQueue gRPC service
type QueueService struct {
	registry *Registry
}

// NewQueueService creates a new DelayQueue service
func NewQueueService(registry *Registry) *QueueService {
	return &QueueService{registry: registry}
}

func (s *QueueService) queue(topic string) (*delayqueue.DelayQueue, *delayqueue.Counter, error) {
	if topic == "" {
		return nil, nil, status.Error(codes.InvalidArgument, "topic cannot be empty")
	}
	q, c, err := s.registry.Queue(topic)
	if err != nil {
		if errors.Is(err, ErrTooManyTopics) {
			return nil, nil, status.Error(codes.ResourceExhausted, err.Error())
		}
		return nil, nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return q, c, nil
}

// Push schedules a message on a topic
func (s *QueueService) Push(ctx context.Context, req *delayqv1.PushRequest) (*delayqv1.PushResponse, error) {
	q, _, err := s.queue(req.Topic)
	if err != nil {
		return nil, err
	}

	var id string
	switch {
	case req.DelayMs != nil:
		id = q.PushDelay(ctx, time.Duration(*req.DelayMs)*time.Millisecond, req.Id, req.Body)
	case req.Id != "":
		id = q.PushID(ctx, req.Id, req.Body)
	default:
		id = q.Push(ctx, req.Body)
	}

	return &delayqv1.PushResponse{Id: id}, nil
}

// Pop returns due messages from a topic
func (s *QueueService) Pop(ctx context.Context, req *delayqv1.PopRequest) (*delayqv1.PopResponse, error) {
	q, _, err := s.queue(req.Topic)
	if err != nil {
		return nil, err
	}

	bodies, err := q.PopN(ctx, int(req.BatchSize))
	if err != nil {
		if errors.Is(err, delayqueue.ErrPollFailed) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &delayqv1.PopResponse{Bodies: bodies}, nil
}

// Cancel removes a pending message
func (s *QueueService) Cancel(ctx context.Context, req *delayqv1.CancelRequest) (*delayqv1.CancelResponse, error) {
	q, _, err := s.queue(req.Topic)
	if err != nil {
		return nil, err
	}

	if err := q.Cancel(ctx, req.Id); err != nil {
		if errors.Is(err, delayqueue.ErrEmptyID) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	return &delayqv1.CancelResponse{}, nil
}

// Stats returns index counts and per-outcome counters for a topic
func (s *QueueService) Stats(ctx context.Context, req *delayqv1.StatsRequest) (*delayqv1.StatsResponse, error) {
	q, counter, err := s.queue(req.Topic)
	if err != nil {
		return nil, err
	}

	st, err := q.Stats(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	return &delayqv1.StatsResponse{
		Topic:   st.Topic,
		Pending: st.Pending,
		Due:     st.Due,
		Events:  counter.Snapshot(),
	}, nil
}
