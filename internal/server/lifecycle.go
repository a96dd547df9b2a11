// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/modulebox/modulebox/internal/core/serverbase"
)

// Start binds the listener and blocks until either:
//   - The server is ready to accept connections (returns nil)
//   - Listening fails (returns error)
//   - The context is cancelled or the startup timeout passes (returns error)
//
// After Start() returns nil, use Err() to monitor for runtime errors.
func (s *Server) Start(ctx context.Context) error {
	if err := s.BeginStart(ctx); err != nil {
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", s.cfg.Address)
	if err != nil {
		return s.Fail(fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err))
	}

	// Requests outlive BeginStop so that Shutdown can drain them.
	reqCtx, reqCancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.StartupTimeout,
		BaseContext:       func(net.Listener) context.Context { return reqCtx },
	}

	s.srvMu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.httpServer = srv
	s.reqCancel = reqCancel
	s.srvMu.Unlock()

	s.Go(s.serve)

	select {
	case <-s.Ready():
		s.logger.Info("bundle server started", "address", s.addr, "mount", s.cfg.Mount, "root", s.box.Root())
		return nil

	case err := <-s.Err():
		_ = listener.Close()
		reqCancel()
		return s.Fail(err)

	case <-startupCtx.Done():
		_ = listener.Close()
		reqCancel()
		return s.Fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
	}
}

// Stop gracefully stops the server, waiting for in-flight bundles up to the
// shutdown timeout. Bundles still streaming after that are cut off.
// Safe to call multiple times; subsequent calls are no-ops.
func (s *Server) Stop() error {
	if !s.BeginStop() {
		s.Drain()
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			s.logger.Error("shutdown error", "error", shutdownErr)
			_ = s.httpServer.Close()
		}
	}
	if s.reqCancel != nil {
		s.reqCancel()
	}
	s.srvMu.Unlock()

	s.FinishStop()
	s.logger.Info("bundle server stopped")

	return shutdownErr
}

func (s *Server) serve() {
	s.MarkRunning()

	s.srvMu.Lock()
	srv, listener := s.httpServer, s.listener
	s.srvMu.Unlock()

	if err := srv.Serve(listener); err != nil {
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return
		}
		s.Report(fmt.Errorf("serve error: %w", err))
	}
}

// Address returns the bound address (host:port), or "" if the server is not
// running.
func (s *Server) Address() string {
	select {
	case <-s.Ready():
		s.srvMu.Lock()
		defer s.srvMu.Unlock()
		return s.addr
	default:
		return ""
	}
}

// Wait blocks until the server reaches a terminal state.
// Returns the error if the server failed, nil otherwise.
func (s *Server) Wait() error {
	<-s.Done()
	if s.State() == serverbase.StateFailed {
		return s.LastError()
	}
	return nil
}
