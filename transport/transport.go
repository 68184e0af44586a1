// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"strings"
)

// Method identifies a transport. It is fixed for the lifetime of a
// session and selects which adapter is opened.
type Method string

const (
	// MethodNone is reported when no session is active.
	MethodNone        Method = "none"
	MethodMesh        Method = "mesh"
	MethodRelayPeer   Method = "relay-peer"
	MethodServerRelay Method = "server-relay"
)

// DefaultPriority is the fallback order for the implicit connect path:
// direct links first, the server relay last as the universal fallback.
var DefaultPriority = []Method{MethodMesh, MethodRelayPeer, MethodServerRelay}

func (m Method) String() string { return string(m) }

// Valid reports whether m names a transport (MethodNone is not one).
func (m Method) Valid() bool {
	switch m {
	case MethodMesh, MethodRelayPeer, MethodServerRelay:
		return true
	}
	return false
}

// Next returns the method after m in DefaultPriority, wrapping around.
// Used by the UI to cycle transports.
func (m Method) Next() Method {
	for index, method := range DefaultPriority {
		if method == m {
			return DefaultPriority[(index+1)%len(DefaultPriority)]
		}
	}
	return DefaultPriority[0]
}

// ParseMethod parses a transport name. The legacy names webrtc, peerjs
// and websocket are accepted as aliases.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mesh", "webrtc":
		return MethodMesh, nil
	case "relay-peer", "relaypeer", "peerjs":
		return MethodRelayPeer, nil
	case "server-relay", "serverrelay", "websocket":
		return MethodServerRelay, nil
	}
	return MethodNone, fmt.Errorf("unknown transport %q (want mesh, relay-peer or server-relay)", name)
}

// MessageKind is the Kind of every chat message.
const MessageKind = "message"

// Message is a chat message as handed to Send and delivered to
// MessageHandler. ID and timestamp are assigned by the caller after a
// successful send; the transport does not confirm delivery.
type Message struct {
	Text   string
	Sender string
	Kind   string
}

// NewMessage returns a chat message from sender.
func NewMessage(text, sender string) Message {
	return Message{Text: text, Sender: sender, Kind: MessageKind}
}

// PresenceKind distinguishes join and leave notifications.
type PresenceKind string

const (
	PresenceJoin  PresenceKind = "join"
	PresenceLeave PresenceKind = "leave"
)

// Valid reports whether k is join or leave.
func (k PresenceKind) Valid() bool { return k == PresenceJoin || k == PresenceLeave }

// MessageHandler receives one inbound chat message. senderID is the
// transport-level identity of the sending connection.
type MessageHandler func(message Message, senderID string)

// PresenceHandler receives one inbound presence notification.
type PresenceHandler func(kind PresenceKind, username string)

// Adapter wraps one real-time communication mechanism. Construction
// performs no I/O; each Open creates an independent Handle.
type Adapter interface {
	// Method identifies the transport.
	Method() Method

	// Open establishes the channel for roomID. It resolves within the
	// adapter's configured open timeout (or sooner if ctx ends) to a
	// usable handle or a *ConnectError.
	Open(ctx context.Context, roomID string) (Handle, error)
}

// Handle is an open channel to one room.
type Handle interface {
	// Send broadcasts message to the current members of the room. It
	// is fire-and-forget: no acknowledgment, no delivery or ordering
	// guarantee. Returns ErrHandleClosed after Close.
	Send(message Message) error

	// SendPresence broadcasts a presence notification on the presence
	// channel, with the same delivery semantics as Send.
	SendPresence(kind PresenceKind, username string) error

	// OnMessage registers the callback for inbound messages. A second
	// registration replaces the first. Events arriving before
	// registration are dropped. Callbacks must not call Close.
	OnMessage(handler MessageHandler)

	// OnPresence registers the callback for inbound presence events.
	OnPresence(handler PresenceHandler)

	// Close releases all resources. It is safe to call more than once;
	// calls after the first return nil. No callback runs after Close
	// returns.
	Close() error
}
