// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package agent runs veil as a long-lived redacting relay.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/mbeema/veil/pkg/config"
	"github.com/mbeema/veil/pkg/discovery"
	"github.com/mbeema/veil/pkg/engine"
	"github.com/mbeema/veil/pkg/export"
	"github.com/mbeema/veil/pkg/health"
	"github.com/mbeema/veil/pkg/relay"
	"github.com/mbeema/veil/pkg/words"
)

// DefaultListenAddr is the standard OTLP gRPC port.
const DefaultListenAddr = "127.0.0.1:4317"

const maxRecvSize = 16 * 1024 * 1024

// Options configures an Agent.
type Options struct {
	Config    *config.Config
	Rules     []words.Rule
	Decisions []discovery.Resolution // saved by earlier interactive runs

	ListenAddr  string // relay gRPC address
	Upstream    string // OTLP endpoint to forward to; empty drops redacted requests
	Insecure    bool
	Compression string

	HealthAddr string // empty disables the health server
	WatchPath  string // configuration file to reload on change; empty disables
	Loader     *config.Loader
	Version    string
}

// Agent wires the relay, the upstream forwarder, the health server and the
// configuration watcher together. The configuration is an atomic pointer;
// Reload builds a new engine and swaps it into the relay.
type Agent struct {
	cfg    atomic.Pointer[config.Config]
	opts   Options
	logger *zap.Logger

	stats        *health.Stats
	relay        *relay.Server
	forwarder    *export.Forwarder
	healthServer *health.Server
	watcher      *config.Watcher

	grpcServer *grpc.Server
	listener   net.Listener

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds an agent. Nothing listens until Start.
func New(opts Options, logger *zap.Logger) (*Agent, error) {
	if opts.Config == nil {
		return nil, errors.New("agent: configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = DefaultListenAddr
	}
	if opts.Loader == nil {
		opts.Loader = config.NewLoader(config.WithLogger(logger))
	}

	a := &Agent{
		opts:   opts,
		logger: logger,
		stats:  health.NewStats(),
	}

	eng, err := a.newEngine(opts.Config)
	if err != nil {
		return nil, err
	}
	a.cfg.Store(opts.Config)

	relayOpts := []relay.Option{relay.WithStats(a.stats), relay.WithLogger(logger)}
	if opts.Upstream != "" {
		fwd, err := export.NewForwarder(export.ForwarderConfig{
			Endpoint:    opts.Upstream,
			Insecure:    opts.Insecure,
			Compression: opts.Compression,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create forwarder: %w", err)
		}
		a.forwarder = fwd
		relayOpts = append(relayOpts, relay.WithForwarder(fwd))
	}
	a.relay = relay.NewServer(eng, relayOpts...)

	if opts.HealthAddr != "" {
		a.healthServer = health.NewServer(opts.HealthAddr, opts.Version, a.stats, logger)
		if a.forwarder != nil {
			breaker := a.forwarder.Breaker()
			a.healthServer.AddCheck("upstream", func() error {
				if breaker.State() == export.BreakerOpen {
					return export.ErrCircuitOpen
				}
				return nil
			})
		}
	}
	return a, nil
}

func (a *Agent) newEngine(cfg *config.Config) (*engine.Engine, error) {
	return engine.New(cfg,
		engine.WithLogger(a.logger),
		engine.WithRules(a.opts.Rules),
		engine.WithDecisions(a.opts.Decisions),
		engine.WithStats(a.stats),
	)
}

// Config returns the configuration in effect.
func (a *Agent) Config() *config.Config {
	return a.cfg.Load()
}

// Stats returns the agent's counters.
func (a *Agent) Stats() *health.Stats {
	return a.stats
}

// Addr returns the relay's bound address once started.
func (a *Agent) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// HealthAddr returns the health server's bound address once started.
func (a *Agent) HealthAddr() string {
	if a.healthServer == nil {
		return ""
	}
	return a.healthServer.Addr()
}

// Start opens the relay listener and starts the health server and watcher.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errors.New("agent already started")
	}
	ctx, a.cancel = context.WithCancel(ctx)

	lis, err := net.Listen("tcp", a.opts.ListenAddr)
	if err != nil {
		a.cancel()
		return fmt.Errorf("listen on %s: %w", a.opts.ListenAddr, err)
	}
	a.listener = lis
	a.grpcServer = grpc.NewServer(grpc.MaxRecvMsgSize(maxRecvSize))
	a.relay.Register(a.grpcServer)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("relay server error", zap.Error(err))
		}
	}()

	if a.healthServer != nil {
		if err := a.healthServer.Start(ctx); err != nil {
			a.grpcServer.Stop()
			a.cancel()
			return fmt.Errorf("start health server: %w", err)
		}
		a.healthServer.SetConfigSource(a.cfg.Load().Source())
	}

	if a.opts.WatchPath != "" {
		a.watcher = config.NewWatcher(a.opts.WatchPath, a.opts.Loader, func(cfg *config.Config) {
			if err := a.Reload(config.ApplyEnvOverrides(cfg)); err != nil {
				a.logger.Error("reload rejected", zap.Error(err))
			}
		}, a.logger)
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn("config watcher unavailable", zap.Error(err))
			a.watcher = nil
		}
	}

	if a.healthServer != nil {
		a.healthServer.SetReady(true)
	}
	a.started = true

	cfg := a.cfg.Load()
	a.logger.Info("relay started",
		zap.String("listen", lis.Addr().String()),
		zap.String("upstream", a.opts.Upstream),
		zap.String("config", cfg.Source()),
		zap.String("discovery", cfg.Discovery.ModeName()),
	)
	return nil
}

// Stop shuts everything down, finishing requests in flight.
func (a *Agent) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false

	var result error
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.healthServer != nil {
		a.healthServer.SetReady(false)
		if err := a.healthServer.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop health server: %w", err))
		}
	}
	a.grpcServer.GracefulStop()
	a.wg.Wait()

	if a.forwarder != nil {
		if err := a.forwarder.Shutdown(context.Background()); err != nil {
			result = multierror.Append(result, fmt.Errorf("close forwarder: %w", err))
		}
	}
	a.cancel()

	snap := a.stats.Snapshot()
	a.logger.Info("relay stopped",
		zap.Int64("requests", snap.RequestsReceived),
		zap.Int64("forwarded", snap.RequestsForwarded),
		zap.Int64("forward_errors", snap.ForwardErrors),
		zap.Int64("events", snap.EventsProcessed),
		zap.Int64("redacted", snap.ValuesRedacted),
	)
	return result
}

// Reload swaps in cfg. The new engine is built first, so an invalid
// configuration leaves the current one in effect.
func (a *Agent) Reload(cfg *config.Config) error {
	eng, err := a.newEngine(cfg)
	if err != nil {
		return fmt.Errorf("reload %s: %w", cfg.Source(), err)
	}

	a.cfg.Store(cfg)
	a.relay.SetEngine(eng)
	a.stats.ConfigReloads.Add(1)
	if a.healthServer != nil {
		a.healthServer.SetConfigSource(cfg.Source())
	}

	a.logger.Info("configuration reloaded",
		zap.String("config", cfg.Source()),
		zap.String("discovery", cfg.Discovery.ModeName()),
		zap.Bool("pseudonymize", cfg.Pseudonymization.IsEnabled()),
	)
	return nil
}
