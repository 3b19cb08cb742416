// order-notify - Order confirmation notifications over WhatsApp
// Copyright (C) 2026  nexus contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Package httpserver provides the HTTP server scaffold for order-notify.
//
// It sets up a chi router with standard middleware (request ID, real IP,
// logging, recovery, timeout), a /health endpoint, and graceful shutdown.
// Callers register their own routes on Router.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestTimeout bounds every request, including an immediate send to the
// bridge.
const RequestTimeout = 30 * time.Second

const shutdownTimeout = 10 * time.Second

// Server is an HTTP server with standard middleware and graceful shutdown.
type Server struct {
	Router *chi.Mux
	srv    *http.Server
	onStop []func()
	logger *slog.Logger
}

// New creates a Server with standard middleware already applied.
// The returned Router is ready for route registration.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) //nolint:errcheck
	})

	return &Server{Router: r, logger: logger.With("component", "httpserver")}
}

// OnStop registers a function to call during graceful shutdown, after the
// listener has stopped accepting requests. Functions run in registration
// order.
func (s *Server) OnStop(fn func()) {
	s.onStop = append(s.onStop, fn)
}

// ListenAndServe starts the server on addr and blocks until ctx is
// cancelled, then shuts down gracefully. Stop functions run on every
// return path.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.runStop()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		errc <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			s.runStop()
			return err
		}
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
		}
		<-errc
	}

	s.runStop()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) runStop() {
	for _, fn := range s.onStop {
		fn()
	}
}
