// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the interchangeable real-time transports
// that carry a Parley room's chat messages and presence notifications.
//
// Every transport implements [Adapter]. Open establishes the channel for
// one room and returns a [Handle]; the handle broadcasts messages and
// presence to the room, delivers inbound events to one registered
// callback per kind, and releases everything on Close. Close is
// idempotent, and no callback runs after Close returns.
//
// Three production adapters are provided:
//
//   - [MeshAdapter] (mesh): participants connect directly over pion
//     WebRTC data channels. Signaling goes through a [Signaler]
//     bulletin board; [BoardSignaler] talks to the relay server's board
//     endpoints and [MemorySignaler] keeps everything in process.
//   - [RelayPeerAdapter] (relay-peer): a broker reached over a
//     websocket assigns a peer ID and relays offers and answers; chat
//     traffic then flows directly over data channels.
//   - [ServerRelayAdapter] (server-relay): every frame goes through
//     the relay server's hub over a websocket.
//
// [MemoryAdapter] is an in-process adapter for tests and offline demos.
//
// Both WebRTC transports use vanilla ICE: all candidates are gathered
// before an SDP is published, so each link needs exactly one offer and
// one answer. When two peers discover each other, the peer with the
// lexicographically smaller ID makes the offer; the other waits.
//
// [Sequencer] implements the implicit connection path: it tries
// adapters strictly one after another in priority order
// ([DefaultPriority]: mesh, relay-peer, server-relay) and returns the
// first handle that opens. A [*ConnectError] from one adapter means
// "try the next"; exhaustion yields [*AllTransportsFailedError].
package transport
