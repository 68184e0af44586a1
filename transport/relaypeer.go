// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/schema"
)

// Compile-time interface checks.
var (
	_ Adapter = (*RelayPeerAdapter)(nil)
	_ Handle  = (*relayPeerHandle)(nil)
)

// DefaultRelayPeerOpenTimeout applies when RelayPeerConfig.OpenTimeout
// is unset.
const DefaultRelayPeerOpenTimeout = 10 * time.Second

// RelayPeerConfig configures a RelayPeerAdapter.
type RelayPeerConfig struct {
	// BrokerURL is the broker websocket endpoint, for example
	// "ws://localhost:7600/peer". The room is added as ?room=.
	BrokerURL string

	ICE ICEConfig

	// OpenTimeout bounds the dial and the wait for the open envelope.
	OpenTimeout time.Duration

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// RelayPeerAdapter uses a broker to assign peer IDs and relay offers
// and answers. Chat traffic flows directly between peers over data
// channels; the broker never sees it.
type RelayPeerAdapter struct {
	config RelayPeerConfig
}

// NewRelayPeerAdapter returns a relay-peer adapter.
func NewRelayPeerAdapter(config RelayPeerConfig) *RelayPeerAdapter {
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = DefaultRelayPeerOpenTimeout
	}
	config.Logger = orDiscard(config.Logger)
	return &RelayPeerAdapter{config: config}
}

func (a *RelayPeerAdapter) Method() Method { return MethodRelayPeer }

// Open dials the broker for roomID and waits for the open envelope,
// then starts links to the members already present.
func (a *RelayPeerAdapter) Open(ctx context.Context, roomID string) (Handle, error) {
	brokerURL, err := url.Parse(a.config.BrokerURL)
	if err != nil || a.config.BrokerURL == "" {
		return nil, &ConnectError{Method: MethodRelayPeer, Room: roomID, Reason: ReasonUnknown,
			Err: fmt.Errorf("invalid broker URL %q", a.config.BrokerURL)}
	}
	query := brokerURL.Query()
	query.Set("room", roomID)
	brokerURL.RawQuery = query.Encode()

	openCtx, cancel := context.WithTimeout(ctx, a.config.OpenTimeout)
	defer cancel()

	conn, err := dialWebsocket(openCtx, a.config.Dialer, brokerURL.String(), 0)
	if err != nil {
		return nil, NewConnectError(MethodRelayPeer, roomID, err)
	}

	envelope, err := conn.awaitEnvelope(openCtx)
	if err != nil {
		conn.conn.Close()
		return nil, NewConnectError(MethodRelayPeer, roomID, fmt.Errorf("waiting for broker: %w", err))
	}
	switch {
	case envelope.Type == schema.EnvelopeError:
		conn.conn.Close()
		return nil, &ConnectError{Method: MethodRelayPeer, Room: roomID, Reason: ReasonRejected,
			Err: fmt.Errorf("%w: %s", errRejected, envelope.Reason)}
	case envelope.Type != schema.EnvelopeOpen || envelope.ID == "":
		conn.conn.Close()
		return nil, &ConnectError{Method: MethodRelayPeer, Room: roomID, Reason: ReasonRejected,
			Err: fmt.Errorf("%w: expected open envelope, got %q", errRejected, envelope.Type)}
	}

	logger := a.config.Logger.With("method", MethodRelayPeer, "room", roomID, "peer_id", envelope.ID)
	handle := &relayPeerHandle{
		conn:     conn,
		peerID:   envelope.ID,
		logger:   logger,
		readDone: make(chan struct{}),
	}
	handle.dispatch = newDispatcher(logger)
	handle.peers = newPeerSet(envelope.ID, a.config.ICE, handle.dispatch, handle.signal, logger)

	for _, peer := range envelope.Peers {
		handle.peers.connect(peer)
	}
	go handle.readLoop()

	logger.Info("relay-peer handle open", "peers", len(envelope.Peers))
	return handle, nil
}

type relayPeerHandle struct {
	conn     *wsConn
	peerID   string
	logger   *slog.Logger
	dispatch *dispatcher
	peers    *peerSet

	readDone chan struct{}
	closing  sync.Once
}

// signal sends an offer or answer to remoteID through the broker.
func (h *relayPeerHandle) signal(_ context.Context, kind, remoteID, sdp string) error {
	envelopeType := schema.EnvelopeOffer
	if kind == signalAnswer {
		envelopeType = schema.EnvelopeAnswer
	}
	return h.conn.writeEnvelope(&schema.Envelope{Type: envelopeType, To: remoteID, SDP: sdp})
}

// readLoop handles broker envelopes until the socket closes. Losing
// the broker does not tear down established links.
func (h *relayPeerHandle) readLoop() {
	defer close(h.readDone)
	for {
		envelope, err := h.conn.readEnvelope()
		if err != nil {
			if !h.dispatch.isClosed() && !netutil.IsExpectedCloseError(err) {
				h.logger.Warn("broker connection lost", "error", err)
			}
			return
		}
		switch envelope.Type {
		case schema.EnvelopePeerJoined:
			h.peers.connect(envelope.ID)
		case schema.EnvelopePeerLeft:
			h.peers.remove(envelope.ID)
		case schema.EnvelopeOffer:
			h.peers.handleOffer(envelope.From, envelope.SDP)
		case schema.EnvelopeAnswer:
			h.peers.handleAnswer(envelope.From, envelope.SDP)
		case schema.EnvelopeError:
			h.logger.Warn("broker reported an error", "reason", envelope.Reason)
		default:
			h.logger.Debug("ignoring broker envelope", "type", envelope.Type)
		}
	}
}

func (h *relayPeerHandle) Send(message Message) error {
	data, err := encodeFrame(messageFrame(message))
	if err != nil {
		return err
	}
	return h.peers.broadcast(data)
}

func (h *relayPeerHandle) SendPresence(kind PresenceKind, username string) error {
	frame, err := presenceFrame(kind, username)
	if err != nil {
		return err
	}
	data, err := encodeFrame(frame)
	if err != nil {
		return err
	}
	return h.peers.broadcast(data)
}

func (h *relayPeerHandle) OnMessage(handler MessageHandler) { h.dispatch.setMessageHandler(handler) }

func (h *relayPeerHandle) OnPresence(handler PresenceHandler) { h.dispatch.setPresenceHandler(handler) }

// Close leaves the broker, waits for the read loop, and closes every
// peer link.
func (h *relayPeerHandle) Close() error {
	var result error
	h.closing.Do(func() {
		h.dispatch.shutdown()
		if err := h.conn.close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			result = fmt.Errorf("closing broker connection: %w", err)
		}
		<-h.readDone
		h.peers.close()
		h.logger.Info("relay-peer handle closed")
	})
	return result
}

// openPeers returns the peers with an open data channel.
func (h *relayPeerHandle) openPeers() []string { return h.peers.open() }
