package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	delayqv1 "delayq/api/delayqv1"
	"delayq/config"
	"delayq/pkg/delayqueue"
	"delayq/storage"
)

// Server represents the gRPC server
type Server struct {
	config   *config.Config
	storage  storage.Storage
	grpc     *grpc.Server
	log      logrus.FieldLogger
	registry *Registry

	queueService *QueueService
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, store storage.Storage, logger logrus.FieldLogger) (*Server, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxMsg := cfg.Server.MaxRecvMsgSize
	if maxMsg <= 0 {
		maxMsg = 4 * 1024 * 1024 // 4MB
	}

	// Configure gRPC server options
	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Second,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Second,
			Timeout:               1 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(maxMsg),
		grpc.MaxSendMsgSize(maxMsg),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	}

	queueOpts := append(delayqueue.FromConfig(cfg.Queue), delayqueue.WithLogger(logger))
	registry := NewRegistry(store, cfg.Server.MaxTopics, queueOpts...)

	server := &Server{
		config:       cfg,
		storage:      store,
		grpc:         grpc.NewServer(opts...),
		log:          logger,
		registry:     registry,
		queueService: NewQueueService(registry),
	}

	delayqv1.RegisterDelayQueueServer(server.grpc, server.queueService)

	return server, nil
}

// Registry exposes the per-topic queues served by this server.
func (s *Server) Registry() *Registry { return s.registry }

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.log.WithField("address", address).Info("starting delayq server")
	return s.Serve(ctx, listener)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Stop()
}

// Stop stops the server gracefully
func (s *Server) Stop() error {
	s.log.Info("stopping delayq server")

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("server stopped gracefully")
	case <-time.After(30 * time.Second):
		s.log.Warn("force stopping server")
		s.grpc.Stop()
	}

	return nil
}

// loggingInterceptor logs failed calls with their method and code.
func loggingInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":  info.FullMethod,
			"elapsed": time.Since(start),
		})
		if err != nil {
			entry.WithField("code", status.Code(err)).WithError(err).Warn("rpc failed")
		} else {
			entry.Debug("rpc handled")
		}
		return resp, err
	}
}
