// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package export forwards redacted OTLP logs to an upstream collector.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	_ "google.golang.org/grpc/encoding/gzip" // Register gzip compressor

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
)

// ErrCircuitOpen is returned by Export while the upstream is considered down.
var ErrCircuitOpen = errors.New("upstream circuit open")

const (
	defaultTimeout          = 10 * time.Second
	defaultFailureThreshold = 5
	defaultResetTimeout     = 30 * time.Second
	maxSendSize             = 4 * 1024 * 1024
)

// ForwarderConfig configures the upstream connection.
type ForwarderConfig struct {
	Endpoint         string
	Insecure         bool
	Compression      string        // "gzip" (default) or "none"
	Timeout          time.Duration // per export call
	FailureThreshold int           // consecutive failures before the breaker opens
	ResetTimeout     time.Duration // breaker cooldown

	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// Forwarder sends ExportLogsServiceRequests to an OTLP gRPC endpoint with
// automatic reconnection behind a circuit breaker.
type Forwarder struct {
	logger   *zap.Logger
	endpoint string
	timeout  time.Duration
	opts     []grpc.DialOption
	breaker  *Breaker

	mu     sync.RWMutex
	conn   *grpc.ClientConn
	logSvc collogspb.LogsServiceClient
}

// NewForwarder dials cfg.Endpoint. The dial does not block; connection
// problems surface on Export.
func NewForwarder(cfg ForwarderConfig, logger *zap.Logger) (*Forwarder, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("forwarder endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(maxSendSize)),
	}
	if cfg.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	switch cfg.Compression {
	case "", "gzip":
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.UseCompressor("gzip")))
	case "none":
	default:
		return nil, fmt.Errorf("unsupported compression %q", cfg.Compression)
	}
	opts = append(opts, cfg.DialOptions...)

	f := &Forwarder{
		logger:   logger,
		endpoint: cfg.Endpoint,
		timeout:  orDuration(cfg.Timeout, defaultTimeout),
		opts:     opts,
		breaker: NewBreaker(
			orInt(cfg.FailureThreshold, defaultFailureThreshold),
			orDuration(cfg.ResetTimeout, defaultResetTimeout),
		),
	}
	if err := f.connect(); err != nil {
		return nil, err
	}
	return f, nil
}

// Endpoint returns the upstream address.
func (f *Forwarder) Endpoint() string {
	return f.endpoint
}

// Breaker returns the forwarder's circuit breaker.
func (f *Forwarder) Breaker() *Breaker {
	return f.breaker
}

// connect establishes or re-establishes the gRPC connection.
func (f *Forwarder) connect() error {
	conn, err := grpc.Dial(f.endpoint, f.opts...)
	if err != nil {
		return fmt.Errorf("dial OTLP endpoint %s: %w", f.endpoint, err)
	}
	f.conn = conn
	f.logSvc = collogspb.NewLogsServiceClient(conn)
	return nil
}

// ensureConnected checks connection health and reconnects if needed.
func (f *Forwarder) ensureConnected() error {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()

	if conn == nil {
		return f.reconnect()
	}
	switch conn.GetState() {
	case connectivity.TransientFailure, connectivity.Shutdown:
		return f.reconnect()
	default:
		return nil
	}
}

// reconnect closes the old connection and creates a new one.
func (f *Forwarder) reconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		state := f.conn.GetState()
		if state == connectivity.Ready || state == connectivity.Idle {
			return nil
		}
		f.conn.Close()
	}

	f.logger.Info("reconnecting to OTLP endpoint", zap.String("endpoint", f.endpoint))
	if err := f.connect(); err != nil {
		f.logger.Error("reconnect failed", zap.Error(err))
		return err
	}
	return nil
}

// Export forwards req upstream. Failures count against the circuit breaker
// unless the caller's context ended first.
func (f *Forwarder) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) error {
	if len(req.GetResourceLogs()) == 0 {
		return nil
	}
	if !f.breaker.Allow() {
		return ErrCircuitOpen
	}
	if err := f.ensureConnected(); err != nil {
		f.breaker.Failure()
		return fmt.Errorf("connection not ready: %w", err)
	}

	f.mu.RLock()
	svc := f.logSvc
	f.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if _, err := svc.Export(callCtx, req); err != nil {
		if ctx.Err() == nil {
			f.breaker.Failure()
			if f.breaker.State() == BreakerOpen {
				f.logger.Warn("upstream circuit opened",
					zap.String("endpoint", f.endpoint),
					zap.Int("failures", f.breaker.Failures()),
				)
			}
		}
		return fmt.Errorf("forward logs to %s: %w", f.endpoint, err)
	}
	f.breaker.Success()
	return nil
}

// Shutdown closes the gRPC connection.
func (f *Forwarder) Shutdown(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
