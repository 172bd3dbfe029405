// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Check reports why a dependency is not ready, or nil.
type Check func() error

// Server serves /health (liveness and run summary), /ready (readiness with
// named checks) and /metrics (Prometheus text).
type Server struct {
	logger  *zap.Logger
	stats   *Stats
	version string
	addr    string

	started atomic.Bool
	source  atomic.Pointer[string]

	mu     sync.RWMutex
	checks map[string]Check

	server *http.Server
	bound  string
}

// NewServer creates a health server listening on addr once started.
func NewServer(addr, version string, stats *Stats, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		version: version,
		stats:   stats,
		logger:  logger,
		checks:  make(map[string]Check),
	}
}

// SetReady marks whether the relay has finished starting. /ready fails
// until it is set, whatever the checks say.
func (s *Server) SetReady(ready bool) {
	s.started.Store(ready)
}

// SetConfigSource records the configuration currently in effect.
func (s *Server) SetConfigSource(source string) {
	s.source.Store(&source)
}

// AddCheck registers a named readiness check, replacing any of that name.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	return s.bound
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

// Start listens and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.bound = ln.Addr().String()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", zap.Error(err))
		}
	}()

	s.logger.Info("health server started", zap.String("addr", s.bound))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Config   string `json:"config,omitempty"`
	Runs     int64  `json:"runs"`
	Requests int64  `json:"requests"`
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:   "healthy",
		Version:  s.version,
		Uptime:   s.stats.Uptime().Truncate(time.Second).String(),
		Runs:     s.stats.Runs.Load(),
		Requests: s.stats.RequestsReceived.Load(),
	}
	if src := s.source.Load(); src != nil {
		resp.Config = *src
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	resp := readyResponse{Status: "ready"}
	if !s.started.Load() {
		resp.Status = "starting"
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		if err := s.checks[name](); err != nil {
			resp.Checks[name] = err.Error()
			if resp.Status == "ready" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[name] = "ok"
	}
	s.mu.RUnlock()

	code := http.StatusOK
	if resp.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(s.stats.PrometheusMetrics()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
