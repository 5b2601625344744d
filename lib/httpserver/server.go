// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpserver runs an http.Handler on a TCP listener until a
// context is cancelled, then drains in-flight requests.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds the drain when Config.ShutdownTimeout
// is zero.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the parameters for a Server.
type Config struct {
	// Address is the TCP listen address (e.g., ":8750",
	// "127.0.0.1:0"). Required.
	Address string

	// Handler is required.
	Handler http.Handler

	// ShutdownTimeout bounds the wait for in-flight requests after the
	// context is cancelled. Defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Logger is optional. Nil discards.
	Logger *slog.Logger
}

// Server serves HTTP on one listener.
type Server struct {
	address         string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// New creates a Server. Call Serve to start it.
func New(config Config) (*Server, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("httpserver: Address is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("httpserver: Handler is required")
	}
	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		address:         config.Address,
		handler:         config.Handler,
		shutdownTimeout: timeout,
		logger:          logger,
		ready:           make(chan struct{}),
	}, nil
}

// Ready is closed once the server is bound and accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Valid after Ready is closed; with
// port 0 it carries the assigned port.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits up to ShutdownTimeout for active requests.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("httpserver: listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	// Asset downloads can be large, so there is no write timeout.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
