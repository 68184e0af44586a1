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

	"github.com/google/uuid"

	"github.com/bureau-foundation/parley/lib/clock"
)

// Compile-time interface checks.
var (
	_ Adapter = (*MeshAdapter)(nil)
	_ Handle  = (*meshHandle)(nil)
)

// Mesh defaults applied by NewMeshAdapter.
const (
	DefaultMeshPollInterval = 2 * time.Second
	DefaultMeshOpenTimeout  = 10 * time.Second
	defaultAppID            = "parley"
)

// withdrawTimeout bounds the best-effort board withdrawal on Close.
const withdrawTimeout = 2 * time.Second

// MeshConfig configures a MeshAdapter.
type MeshConfig struct {
	// AppID prefixes every board namespace so unrelated deployments
	// sharing a board never meet.
	AppID string

	// Signaler is the bulletin board. Required.
	Signaler Signaler

	ICE ICEConfig

	// PollInterval is the period of the heartbeat and signaling poll.
	PollInterval time.Duration

	// OpenTimeout bounds the initial announcement.
	OpenTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// MeshAdapter connects room members directly over WebRTC data channels.
// Members find each other through the Signaler; no server carries chat
// traffic.
type MeshAdapter struct {
	config MeshConfig
}

// NewMeshAdapter returns a mesh adapter. Unset fields take defaults.
func NewMeshAdapter(config MeshConfig) *MeshAdapter {
	if config.AppID == "" {
		config.AppID = defaultAppID
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMeshPollInterval
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = DefaultMeshOpenTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	config.Logger = orDiscard(config.Logger)
	return &MeshAdapter{config: config}
}

func (a *MeshAdapter) Method() Method { return MethodMesh }

// Namespace returns the board namespace for roomID.
func (a *MeshAdapter) Namespace(roomID string) string {
	return a.config.AppID + ":" + roomID
}

// Open announces a fresh peer ID on the board and starts the poller.
// Having no other members yet is not an error.
func (a *MeshAdapter) Open(ctx context.Context, roomID string) (Handle, error) {
	if a.config.Signaler == nil {
		return nil, &ConnectError{Method: MethodMesh, Room: roomID, Reason: ReasonUnknown,
			Err: errors.New("no signaler configured")}
	}

	openCtx, cancel := context.WithTimeout(ctx, a.config.OpenTimeout)
	defer cancel()

	peerID := uuid.NewString()
	namespace := a.Namespace(roomID)
	if err := a.config.Signaler.Announce(openCtx, namespace, peerID); err != nil {
		return nil, NewConnectError(MethodMesh, roomID, fmt.Errorf("announcing on board: %w", err))
	}

	logger := a.config.Logger.With("method", MethodMesh, "room", roomID, "peer_id", peerID)
	handle := &meshHandle{
		signaler:  a.config.Signaler,
		namespace: namespace,
		peerID:    peerID,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	handle.dispatch = newDispatcher(logger)
	handle.peers = newPeerSet(peerID, a.config.ICE, handle.dispatch, handle.signal, logger)

	go handle.poll(a.config.Clock, a.config.PollInterval)

	logger.Info("mesh handle open", "namespace", namespace)
	return handle, nil
}

type meshHandle struct {
	signaler  Signaler
	namespace string
	peerID    string
	logger    *slog.Logger
	dispatch  *dispatcher
	peers     *peerSet

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// signal publishes an offer or answer on the board.
func (h *meshHandle) signal(ctx context.Context, kind, remoteID, sdp string) error {
	switch kind {
	case signalOffer:
		return h.signaler.PublishOffer(ctx, h.namespace, h.peerID, remoteID, sdp)
	case signalAnswer:
		return h.signaler.PublishAnswer(ctx, h.namespace, remoteID, h.peerID, sdp)
	}
	return fmt.Errorf("unknown signal kind %q", kind)
}

// poll runs the heartbeat and signaling loop until Close.
func (h *meshHandle) poll(clk clock.Clock, interval time.Duration) {
	defer close(h.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-h.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	h.pollOnce(ctx)
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.pollOnce(ctx)
		}
	}
}

// pollOnce re-announces, reconciles links with the member list, and
// processes pending offers and answers.
func (h *meshHandle) pollOnce(ctx context.Context) {
	if err := h.signaler.Announce(ctx, h.namespace, h.peerID); err != nil {
		h.logPollError(ctx, "mesh heartbeat failed", err)
	}

	members, err := h.signaler.Members(ctx, h.namespace)
	if err != nil {
		h.logPollError(ctx, "listing mesh members failed", err)
	} else {
		present := make(map[string]struct{}, len(members))
		for _, member := range members {
			present[member] = struct{}{}
			h.peers.connect(member)
		}
		for _, known := range h.peers.known() {
			if _, ok := present[known]; !ok {
				h.logger.Debug("peer left the board", "peer", known)
				h.peers.remove(known)
			}
		}
	}

	offers, err := h.signaler.PollOffers(ctx, h.namespace, h.peerID)
	if err != nil {
		h.logPollError(ctx, "polling offers failed", err)
	}
	for _, offer := range offers {
		h.peers.handleOffer(offer.PeerID, offer.SDP)
	}

	answers, err := h.signaler.PollAnswers(ctx, h.namespace, h.peerID)
	if err != nil {
		h.logPollError(ctx, "polling answers failed", err)
	}
	for _, answer := range answers {
		h.peers.handleAnswer(answer.PeerID, answer.SDP)
	}
}

func (h *meshHandle) logPollError(ctx context.Context, message string, err error) {
	if ctx.Err() != nil {
		return
	}
	h.logger.Warn(message, "error", err)
}

func (h *meshHandle) Send(message Message) error {
	data, err := encodeFrame(messageFrame(message))
	if err != nil {
		return err
	}
	return h.peers.broadcast(data)
}

func (h *meshHandle) SendPresence(kind PresenceKind, username string) error {
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

func (h *meshHandle) OnMessage(handler MessageHandler) { h.dispatch.setMessageHandler(handler) }

func (h *meshHandle) OnPresence(handler PresenceHandler) { h.dispatch.setPresenceHandler(handler) }

// Close stops the poller, closes every link and withdraws from the
// board. A failed withdrawal is returned; the board expires the entry.
func (h *meshHandle) Close() error {
	var withdrawErr error
	h.closeOnce.Do(func() {
		h.dispatch.shutdown()
		close(h.stop)
		<-h.done
		h.peers.close()

		ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
		defer cancel()
		if err := h.signaler.Withdraw(ctx, h.namespace, h.peerID); err != nil {
			withdrawErr = fmt.Errorf("withdrawing from board: %w", err)
		}
		h.logger.Info("mesh handle closed")
	})
	return withdrawErr
}

// openPeers returns the peers with an open data channel.
func (h *meshHandle) openPeers() []string { return h.peers.open() }
