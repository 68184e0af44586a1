// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/schema"
)

// joinTimeout bounds the wait for a hub client's join envelope.
const joinTimeout = 10 * time.Second

// Hub relays message and presence envelopes between the members of each
// room. A client joins with a join envelope and receives its connection
// ID in the joined reply; everything it sends afterwards reaches every
// other member of the room with From set to that ID.
type Hub struct {
	logger       *slog.Logger
	clock        clock.Clock
	writeTimeout time.Duration

	mu     sync.Mutex
	rooms  map[string]map[string]*client
	closed bool
}

// NewHub returns an empty hub.
func NewHub(clk clock.Clock, writeTimeout time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		logger:       logger,
		clock:        clk,
		writeTimeout: writeTimeout,
		rooms:        make(map[string]map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves one hub client.
func (h *Hub) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		h.logger.Debug("hub upgrade failed", "remote", request.RemoteAddr, "error", err)
		return
	}

	member := newClient(conn, uuid.NewString(), "", h.writeTimeout)
	defer member.close()

	conn.SetReadDeadline(time.Now().Add(joinTimeout))
	join, err := member.read()
	if err != nil {
		return
	}
	if join.Type != schema.EnvelopeJoin || join.Room == "" {
		member.reject("first envelope must be join with a room")
		return
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	member.room = join.Room

	if !h.register(member) {
		member.reject("server shutting down")
		return
	}
	defer h.unregister(member)

	if err := member.send(&schema.Envelope{Type: schema.EnvelopeJoined, ID: member.id}); err != nil {
		return
	}
	go member.keepalive(h.clock)

	logger := h.logger.With("room", member.room, "connection_id", member.id)
	logger.Info("hub client joined")

	for {
		envelope, err := member.read()
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("hub client read failed", "error", err)
			}
			logger.Info("hub client left")
			return
		}
		switch envelope.Type {
		case schema.EnvelopeMessage, schema.EnvelopePresence:
			if envelope.Frame == nil || envelope.Frame.Validate() != nil {
				logger.Debug("dropping invalid frame", "type", envelope.Type)
				continue
			}
			h.broadcast(member, &schema.Envelope{
				Type:  envelope.Type,
				From:  member.id,
				Frame: envelope.Frame,
			})
		default:
			logger.Debug("ignoring hub envelope", "type", envelope.Type)
		}
	}
}

func (h *Hub) register(member *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	members, ok := h.rooms[member.room]
	if !ok {
		members = make(map[string]*client)
		h.rooms[member.room] = members
	}
	members[member.id] = member
	return true
}

func (h *Hub) unregister(member *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[member.room]
	if members[member.id] == member {
		delete(members, member.id)
	}
	if len(members) == 0 {
		delete(h.rooms, member.room)
	}
}

// broadcast sends envelope to every member of sender's room except the
// sender. A member whose write fails is dropped.
func (h *Hub) broadcast(sender *client, envelope *schema.Envelope) {
	data, err := codec.Marshal(envelope)
	if err != nil {
		h.logger.Error("encoding relayed envelope failed", "error", err)
		return
	}

	h.mu.Lock()
	recipients := make([]*client, 0, len(h.rooms[sender.room]))
	for _, member := range h.rooms[sender.room] {
		if member != sender {
			recipients = append(recipients, member)
		}
	}
	h.mu.Unlock()

	for _, recipient := range recipients {
		if err := recipient.write(data); err != nil {
			h.logger.Warn("dropping hub client after write failure",
				"room", recipient.room, "connection_id", recipient.id, "error", err)
			recipient.close()
			h.unregister(recipient)
		}
	}
}

// Rooms returns the member count of every non-empty room.
func (h *Hub) Rooms() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		counts[room] = len(members)
	}
	return counts
}

// Close disconnects every client and refuses new joins.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var members []*client
	for _, room := range h.rooms {
		for _, member := range room {
			members = append(members, member)
		}
	}
	h.mu.Unlock()
	for _, member := range members {
		member.close()
	}
}
