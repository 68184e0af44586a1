// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/schema"
)

// Compile-time interface checks.
var (
	_ Adapter = (*ServerRelayAdapter)(nil)
	_ Handle  = (*serverRelayHandle)(nil)
)

// DefaultServerRelayOpenTimeout applies when ServerRelayConfig.OpenTimeout
// is unset.
const DefaultServerRelayOpenTimeout = 10 * time.Second

// ServerRelayConfig configures a ServerRelayAdapter.
type ServerRelayConfig struct {
	// ServerURL is the hub websocket endpoint, for example
	// "ws://localhost:7600/relay".
	ServerURL string

	// OpenTimeout bounds the dial, the join and the joined reply.
	OpenTimeout time.Duration

	// WriteTimeout bounds each envelope write.
	WriteTimeout time.Duration

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// ServerRelayAdapter sends every frame through the relay server's hub,
// which fans it out to the rest of the room. It works wherever a
// websocket can reach the server, so it is the last resort of the
// default cascade.
type ServerRelayAdapter struct {
	config ServerRelayConfig
}

// NewServerRelayAdapter returns a server-relay adapter.
func NewServerRelayAdapter(config ServerRelayConfig) *ServerRelayAdapter {
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = DefaultServerRelayOpenTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	config.Logger = orDiscard(config.Logger)
	return &ServerRelayAdapter{config: config}
}

func (a *ServerRelayAdapter) Method() Method { return MethodServerRelay }

// Open dials the hub, joins roomID and waits for the joined reply.
func (a *ServerRelayAdapter) Open(ctx context.Context, roomID string) (Handle, error) {
	if a.config.ServerURL == "" {
		return nil, &ConnectError{Method: MethodServerRelay, Room: roomID, Reason: ReasonUnknown,
			Err: errors.New("no server URL configured")}
	}

	openCtx, cancel := context.WithTimeout(ctx, a.config.OpenTimeout)
	defer cancel()

	conn, err := dialWebsocket(openCtx, a.config.Dialer, a.config.ServerURL, a.config.WriteTimeout)
	if err != nil {
		return nil, NewConnectError(MethodServerRelay, roomID, err)
	}

	if err := conn.writeEnvelope(&schema.Envelope{Type: schema.EnvelopeJoin, Room: roomID}); err != nil {
		conn.conn.Close()
		return nil, NewConnectError(MethodServerRelay, roomID, fmt.Errorf("sending join: %w", err))
	}

	envelope, err := conn.awaitEnvelope(openCtx)
	if err != nil {
		conn.conn.Close()
		return nil, NewConnectError(MethodServerRelay, roomID, fmt.Errorf("waiting for joined: %w", err))
	}
	switch {
	case envelope.Type == schema.EnvelopeError:
		conn.conn.Close()
		return nil, &ConnectError{Method: MethodServerRelay, Room: roomID, Reason: ReasonRejected,
			Err: fmt.Errorf("%w: %s", errRejected, envelope.Reason)}
	case envelope.Type != schema.EnvelopeJoined || envelope.ID == "":
		conn.conn.Close()
		return nil, &ConnectError{Method: MethodServerRelay, Room: roomID, Reason: ReasonRejected,
			Err: fmt.Errorf("%w: expected joined envelope, got %q", errRejected, envelope.Type)}
	}

	logger := a.config.Logger.With("method", MethodServerRelay, "room", roomID, "connection_id", envelope.ID)
	handle := &serverRelayHandle{
		conn:         conn,
		connectionID: envelope.ID,
		logger:       logger,
		dispatch:     newDispatcher(logger),
		readDone:     make(chan struct{}),
	}
	go handle.readLoop()

	logger.Info("server-relay handle open")
	return handle, nil
}

type serverRelayHandle struct {
	conn         *wsConn
	connectionID string
	logger       *slog.Logger
	dispatch     *dispatcher

	readDone chan struct{}
	closing  sync.Once
}

func (h *serverRelayHandle) readLoop() {
	defer close(h.readDone)
	for {
		envelope, err := h.conn.readEnvelope()
		if err != nil {
			if !h.dispatch.isClosed() && !netutil.IsExpectedCloseError(err) {
				h.logger.Warn("relay connection lost", "error", err)
			}
			return
		}
		switch envelope.Type {
		case schema.EnvelopeMessage, schema.EnvelopePresence:
			h.dispatch.deliver(envelope.Frame, envelope.From)
		case schema.EnvelopeError:
			h.logger.Warn("relay reported an error", "reason", envelope.Reason)
		default:
			h.logger.Debug("ignoring relay envelope", "type", envelope.Type)
		}
	}
}

func (h *serverRelayHandle) send(envelopeType string, frame *schema.Frame) error {
	if h.dispatch.isClosed() {
		return ErrHandleClosed
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	if err := h.conn.writeEnvelope(&schema.Envelope{Type: envelopeType, Frame: frame}); err != nil {
		if h.dispatch.isClosed() {
			return ErrHandleClosed
		}
		return fmt.Errorf("writing %s to relay: %w", envelopeType, err)
	}
	return nil
}

func (h *serverRelayHandle) Send(message Message) error {
	return h.send(schema.EnvelopeMessage, messageFrame(message))
}

func (h *serverRelayHandle) SendPresence(kind PresenceKind, username string) error {
	frame, err := presenceFrame(kind, username)
	if err != nil {
		return err
	}
	return h.send(schema.EnvelopePresence, frame)
}

func (h *serverRelayHandle) OnMessage(handler MessageHandler) { h.dispatch.setMessageHandler(handler) }

func (h *serverRelayHandle) OnPresence(handler PresenceHandler) { h.dispatch.setPresenceHandler(handler) }

// Close sends a close frame, closes the socket and waits for the read
// loop to exit.
func (h *serverRelayHandle) Close() error {
	var result error
	h.closing.Do(func() {
		h.dispatch.shutdown()
		if err := h.conn.close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			result = fmt.Errorf("closing relay connection: %w", err)
		}
		<-h.readDone
		h.logger.Info("server-relay handle closed")
	})
	return result
}
