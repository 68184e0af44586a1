// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/schema"
)

// Broker introduces relay-peer clients to each other. The room comes
// from the ?room= query parameter; the broker replies with an open
// envelope carrying the new peer ID and the IDs already present, then
// tells the others with peer-joined. Offer and answer envelopes are
// routed by To within the room with From stamped. Only signaling passes
// through the broker.
type Broker struct {
	logger       *slog.Logger
	clock        clock.Clock
	writeTimeout time.Duration

	mu     sync.Mutex
	rooms  map[string]map[string]*client
	closed bool
}

// NewBroker returns an empty broker.
func NewBroker(clk clock.Clock, writeTimeout time.Duration, logger *slog.Logger) *Broker {
	return &Broker{
		logger:       logger,
		clock:        clk,
		writeTimeout: writeTimeout,
		rooms:        make(map[string]map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves one broker client.
func (b *Broker) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		b.logger.Debug("broker upgrade failed", "remote", request.RemoteAddr, "error", err)
		return
	}

	room := request.URL.Query().Get("room")
	peer := newClient(conn, uuid.NewString(), room, b.writeTimeout)
	defer peer.close()

	if room == "" {
		peer.reject("room query parameter required")
		return
	}

	existing, ok := b.register(peer)
	if !ok {
		peer.reject("server shutting down")
		return
	}
	defer b.leave(peer)

	if err := peer.send(&schema.Envelope{Type: schema.EnvelopeOpen, ID: peer.id, Peers: existing}); err != nil {
		return
	}
	b.notify(peer, &schema.Envelope{Type: schema.EnvelopePeerJoined, ID: peer.id})
	go peer.keepalive(b.clock)

	logger := b.logger.With("room", room, "peer_id", peer.id)
	logger.Info("broker peer joined", "existing_peers", len(existing))

	for {
		envelope, err := peer.read()
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("broker peer read failed", "error", err)
			}
			logger.Info("broker peer left")
			return
		}
		switch envelope.Type {
		case schema.EnvelopeOffer, schema.EnvelopeAnswer:
			b.route(peer, envelope)
		default:
			logger.Debug("ignoring broker envelope", "type", envelope.Type)
		}
	}
}

// register adds peer to its room and returns the IDs already there.
func (b *Broker) register(peer *client) ([]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	members, ok := b.rooms[peer.room]
	if !ok {
		members = make(map[string]*client)
		b.rooms[peer.room] = members
	}
	existing := make([]string, 0, len(members))
	for id := range members {
		existing = append(existing, id)
	}
	sort.Strings(existing)
	members[peer.id] = peer
	return existing, true
}

// leave removes peer and tells the rest of the room.
func (b *Broker) leave(peer *client) {
	b.mu.Lock()
	members := b.rooms[peer.room]
	removed := members[peer.id] == peer
	if removed {
		delete(members, peer.id)
	}
	if len(members) == 0 {
		delete(b.rooms, peer.room)
	}
	b.mu.Unlock()

	if removed {
		b.notify(peer, &schema.Envelope{Type: schema.EnvelopePeerLeft, ID: peer.id})
	}
}

// notify sends envelope to every member of subject's room except subject.
func (b *Broker) notify(subject *client, envelope *schema.Envelope) {
	b.mu.Lock()
	recipients := make([]*client, 0, len(b.rooms[subject.room]))
	for _, member := range b.rooms[subject.room] {
		if member != subject {
			recipients = append(recipients, member)
		}
	}
	b.mu.Unlock()

	for _, recipient := range recipients {
		if err := recipient.send(envelope); err != nil {
			b.logger.Debug("broker notify failed", "peer_id", recipient.id, "error", err)
			recipient.close()
		}
	}
}

// route forwards an offer or answer to its target within the sender's
// room. Unknown targets are dropped.
func (b *Broker) route(sender *client, envelope *schema.Envelope) {
	b.mu.Lock()
	target, ok := b.rooms[sender.room][envelope.To]
	b.mu.Unlock()
	if !ok || target == sender {
		b.logger.Debug("dropping signal for unknown peer", "room", sender.room, "to", envelope.To)
		return
	}

	if err := target.send(&schema.Envelope{
		Type: envelope.Type,
		From: sender.id,
		To:   target.id,
		SDP:  envelope.SDP,
	}); err != nil {
		b.logger.Debug("broker route failed", "peer_id", target.id, "error", err)
		target.close()
	}
}

// Rooms returns the peer count of every non-empty room.
func (b *Broker) Rooms() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[string]int, len(b.rooms))
	for room, members := range b.rooms {
		counts[room] = len(members)
	}
	return counts
}

// Close disconnects every peer and refuses new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	var peers []*client
	for _, room := range b.rooms {
		for _, peer := range room {
			peers = append(peers, peer)
		}
	}
	b.mu.Unlock()
	for _, peer := range peers {
		peer.close()
	}
}
