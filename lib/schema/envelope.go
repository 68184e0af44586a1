// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Envelope types for the hub (/relay) endpoint.
const (
	EnvelopeJoin     = "join"
	EnvelopeJoined   = "joined"
	EnvelopeMessage  = "message"
	EnvelopePresence = "presence"
)

// Envelope types for the broker (/peer) endpoint.
const (
	EnvelopeOpen       = "open"
	EnvelopePeerJoined = "peer-joined"
	EnvelopePeerLeft   = "peer-left"
	EnvelopeOffer      = "offer"
	EnvelopeAnswer     = "answer"
)

// EnvelopeError is sent by either endpoint before it closes a
// connection it refuses to serve.
const EnvelopeError = "error"

// Envelope is one websocket binary message. Which fields are set
// depends on Type.
type Envelope struct {
	Type string `cbor:"type"`

	// Room names the room on join.
	Room string `cbor:"room,omitempty"`

	// ID is the server-assigned connection or peer ID (joined, open),
	// or the subject peer of peer-joined and peer-left.
	ID string `cbor:"id,omitempty"`

	// From is stamped by the server on every relayed envelope. Clients
	// leave it empty; a client-supplied value is overwritten.
	From string `cbor:"from,omitempty"`

	// To routes offer and answer envelopes to one peer.
	To string `cbor:"to,omitempty"`

	// SDP is the complete session description, with ICE candidates
	// embedded, for offer and answer envelopes.
	SDP string `cbor:"sdp,omitempty"`

	// Peers lists the other members of the room at open time.
	Peers []string `cbor:"peers,omitempty"`

	// Reason explains an error envelope.
	Reason string `cbor:"reason,omitempty"`

	// Frame is the relayed chat or presence frame on the hub.
	Frame *Frame `cbor:"frame,omitempty"`
}
