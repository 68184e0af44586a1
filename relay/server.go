// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
)

// ServerConfig configures a relay server. Zero values select defaults.
type ServerConfig struct {
	// MemberTTL is how long a board member survives without a
	// re-announce. Defaults to DefaultMemberTTL.
	MemberTTL time.Duration

	// WriteTimeout bounds each websocket envelope write. Defaults to
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Clock drives keepalives and board expiry. Defaults to clock.Real.
	Clock clock.Clock

	Logger *slog.Logger
}

// Server mounts the hub, the broker, and the board on one HTTP server:
//
//	/relay      server-relay hub (websocket)
//	/peer       relay-peer broker (websocket)
//	/board/...  mesh signaling board (HTTP+JSON)
//	/healthz    liveness
type Server struct {
	logger *slog.Logger
	hub    *Hub
	broker *Broker
	board  *Board

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	ready    chan struct{}
}

// NewServer returns a relay server. It does not listen until
// ListenAndServe is called; Handler can also be mounted directly.
func NewServer(config ServerConfig) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Server{
		logger: logger,
		hub:    NewHub(clk, writeTimeout, logger.With("component", "hub")),
		broker: NewBroker(clk, writeTimeout, logger.With("component", "broker")),
		board:  NewBoard(clk, config.MemberTTL, logger.With("component", "board")),
		ready:  make(chan struct{}),
	}
}

// Hub returns the server-relay hub.
func (s *Server) Hub() *Hub { return s.hub }

// Broker returns the relay-peer broker.
func (s *Server) Broker() *Broker { return s.broker }

// Board returns the mesh signaling board.
func (s *Server) Board() *Board { return s.board }

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/relay", s.hub)
	mux.Handle("/peer", s.broker)
	s.board.Register(mux)
	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(writer, "ok\n")
	})
	return mux
}

// ListenAndServe listens on address (":0" picks a free port) and serves
// until ctx is cancelled or Close is called. Ready is closed once the
// listener is bound.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("relay server listening", "address", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go s.board.Run(sweepCtx)

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Ready is closed once ListenAndServe has bound its listener.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Address returns the bound "host:port", or "" before Ready.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the HTTP server and disconnects every websocket client.
// Hijacked websocket connections are not tracked by http.Server, so the
// hub and broker close their own.
func (s *Server) Close() error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	var err error
	if server != nil {
		err = server.Close()
	}
	s.hub.Close()
	s.broker.Close()
	return err
}
