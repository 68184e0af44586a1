// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay implements parley-relay, the rendezvous server behind
// the three Parley transports. One HTTP server hosts:
//
//   - /relay: the [Hub], which carries every frame for server-relay
//     clients. A client joins a room and the hub fans its message and
//     presence envelopes out to the rest of the room.
//   - /peer: the [Broker] for relay-peer clients. It assigns peer IDs,
//     announces arrivals and departures, and routes offers and answers
//     between members of a room. Chat traffic never passes through it.
//   - /board/...: the [Board], a JSON bulletin board where mesh
//     clients announce themselves and exchange session descriptions.
//   - /healthz: liveness.
//
// All state is in memory. Nothing is persisted, and a restart empties
// every room.
package relay
