// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package relay serves the OTLP LogsService, redacts each request, and
// forwards the result upstream.
package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"

	"github.com/mbeema/veil/pkg/engine"
	"github.com/mbeema/veil/pkg/events"
	"github.com/mbeema/veil/pkg/health"
)

// Forwarder delivers redacted requests upstream.
type Forwarder interface {
	Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) error
}

// Server is a collogspb.LogsServiceServer. Requests are redacted one at a
// time through a single engine, so pseudonyms stay consistent across
// requests until the engine is replaced.
type Server struct {
	collogspb.UnimplementedLogsServiceServer

	mu        sync.Mutex
	engine    *engine.Engine
	forwarder Forwarder
	stats     *health.Stats
	logger    *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithForwarder sets where redacted requests go. Without one they are
// redacted and dropped.
func WithForwarder(f Forwarder) Option {
	return func(s *Server) { s.forwarder = f }
}

// WithStats sets the counters requests report into.
func WithStats(stats *health.Stats) Option {
	return func(s *Server) { s.stats = stats }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer returns a relay running eng.
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{engine: eng, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the server to g.
func (s *Server) Register(g *grpc.Server) {
	collogspb.RegisterLogsServiceServer(g, s)
}

// SetEngine swaps the engine. Requests in flight finish on the old one.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
}

// Engine returns the current engine.
func (s *Server) Engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Export redacts req in place and forwards it.
func (s *Server) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	if s.stats != nil {
		s.stats.RequestsReceived.Add(1)
	}

	out, err := s.redact(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		s.logger.Error("redaction failed", zap.Error(err))
		return nil, status.Errorf(codes.Internal, "redact: %v", err)
	}

	if s.forwarder == nil || len(out.GetResourceLogs()) == 0 {
		return &collogspb.ExportLogsServiceResponse{}, nil
	}
	if err := s.forwarder.Export(ctx, out); err != nil {
		if s.stats != nil {
			s.stats.ForwardErrors.Add(1)
		}
		s.logger.Warn("forward failed", zap.Error(err))
		return nil, status.Errorf(codes.Unavailable, "forward: %v", err)
	}
	if s.stats != nil {
		s.stats.RequestsForwarded.Add(1)
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

func (s *Server) redact(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := events.FromRequest(req)
	report, err := s.engine.RunEvents(ctx, batch.Events())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("request redacted",
		zap.String("run", report.RunID),
		zap.Int("events", report.Events),
		zap.Int("removed", report.Removed),
		zap.Int("replaced", report.Replaced),
	)
	return batch.Request(), nil
}
