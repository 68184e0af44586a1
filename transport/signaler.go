// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "context"

// Signaler is the bulletin board mesh peers use to find each other and
// exchange WebRTC session descriptions. Every operation is scoped by a
// namespace ("<app_id>:<room>"), so two rooms never see each other's
// members or signals.
//
// The signaling model is vanilla ICE: all ICE candidates are gathered
// before an SDP is published, so each link needs exactly one offer and
// one answer.
type Signaler interface {
	// Announce records peerID as a member of namespace. Peers call it
	// periodically as a heartbeat; boards may expire silent members.
	Announce(ctx context.Context, namespace, peerID string) error

	// Withdraw removes peerID from namespace. Withdrawing an unknown
	// member is not an error.
	Withdraw(ctx context.Context, namespace, peerID string) error

	// Members returns the current member IDs of namespace, including the
	// caller's own ID if it has announced.
	Members(ctx context.Context, namespace string) ([]string, error)

	// PublishOffer publishes a complete SDP offer from offererID
	// directed at targetID. A later offer for the same pair replaces it.
	PublishOffer(ctx context.Context, namespace, offererID, targetID, sdp string) error

	// PublishAnswer publishes a complete SDP answer from answererID in
	// response to an offer from offererID.
	PublishAnswer(ctx context.Context, namespace, offererID, answererID, sdp string) error

	// PollOffers returns offers directed at peerID that are newer than
	// the last poll.
	PollOffers(ctx context.Context, namespace, peerID string) ([]SignalMessage, error)

	// PollAnswers returns answers to offers made by peerID that are
	// newer than the last poll.
	PollAnswers(ctx context.Context, namespace, peerID string) ([]SignalMessage, error)
}

// SignalMessage is one offer or answer.
type SignalMessage struct {
	// PeerID is the other party: the offerer for a received offer, the
	// answerer for a received answer.
	PeerID string

	// SDP is the complete session description with all ICE candidates
	// embedded.
	SDP string

	// Timestamp is the RFC 3339 publication time of the signal.
	Timestamp string
}

// signalingSeparator joins the two peer IDs of a signal key.
const signalingSeparator = "|"
