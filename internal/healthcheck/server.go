// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package healthcheck serves Kubernetes liveness and readiness probes for
// long-running commands.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Config controls the probe listener. A zero Port disables it.
type Config struct {
	Port  int  `mapstructure:"port"`
	Pprof bool `mapstructure:"pprof"`
}

func DefaultConfig() Config {
	return Config{Port: 8090}
}

// Response is the JSON body of every probe.
type Response struct {
	Healthy    bool            `json:"healthy"`
	Status     string          `json:"status"`
	Conditions map[string]bool `json:"conditions,omitempty"`
}

// Server tracks process status and named readiness conditions. The process
// is ready once every registered condition is true and at least one exists.
type Server struct {
	cfg    Config
	status atomic.Int32

	mu         sync.Mutex
	conditions map[string]bool
}

func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg, conditions: make(map[string]bool)}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

// SetReadyCondition registers or updates a named readiness gate.
func (s *Server) SetReadyCondition(name string, ready bool) {
	s.mu.Lock()
	s.conditions[name] = ready
	s.mu.Unlock()
	slog.Debug("Ready condition updated", slog.String("condition", name), slog.Bool("ready", ready))
}

func (s *Server) IsReady() bool {
	if s.GetStatus() == StatusUnhealthy {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conditions) == 0 {
		return false
	}
	for _, ok := range s.conditions {
		if !ok {
			return false
		}
	}
	return true
}

func (s *Server) snapshot() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.conditions))
	for k, v := range s.conditions {
		out[k] = v
	}
	return out
}

// Handler serves /healthz, /readyz and /livez, plus /debug/pprof/ when
// enabled.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.respond(w, s.GetStatus() == StatusHealthy)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		s.respond(w, s.IsReady())
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		s.respond(w, s.GetStatus() != StatusUnhealthy)
	})
	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func (s *Server) respond(w http.ResponseWriter, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	resp := Response{Healthy: ok, Status: s.GetStatus().String(), Conditions: s.snapshot()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}

// Start listens on the configured port and serves until ctx is done. It
// returns once the listener is bound; serving continues in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Port == 0 {
		return nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("health check listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("Starting health check server",
		slog.String("address", ln.Addr().String()),
		slog.Bool("pprof", s.cfg.Pprof))

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health check server error", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down health check server", slog.Any("error", err))
		}
	}()
	return nil
}

// Conditions lists the registered readiness gates in name order.
func (s *Server) Conditions() []string {
	snap := s.snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
