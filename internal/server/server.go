// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/core/serverbase"

	"github.com/charmbracelet/log"
)

type (
	// Server serves bundle documents over HTTP.
	// A Server instance is single-use: once stopped or failed, create a new instance.
	Server struct {
		*serverbase.Base

		cfg    Config
		box    *box.Box
		logger *log.Logger

		// Initialized during Start(), protected by srvMu.
		srvMu      sync.Mutex
		httpServer *http.Server
		listener   net.Listener
		addr       string
		// reqCancel ends the request contexts once shutdown is over.
		reqCancel context.CancelFunc
	}

	// Option configures a Server.
	Option func(*Server)
)

// WithLogger sets the logger. Defaults to a stderr logger prefixed "modulebox".
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server for b. It is not started; call Start().
func New(b *box.Box, cfg Config, opts ...Option) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		Base: serverbase.NewBase(),
		cfg:  cfg,
		box:  b,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix:          "modulebox",
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP handler serving the bundle and health endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.cfg.Mount, s.handleBundle)
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	return mux
}

// Mount returns the bundle endpoint path.
func (s *Server) Mount() string {
	return s.cfg.Mount
}

// URL returns the bundle endpoint URL, or "" before the server runs.
func (s *Server) URL() string {
	addr := s.Address()
	if addr == "" {
		return ""
	}
	return "http://" + addr + s.cfg.Mount
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
