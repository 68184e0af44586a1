// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire types shared by Parley's client
// adapters and the relay server.
//
// [Frame] is the unit of chat traffic. It carries either one chat
// message or one presence notification and is CBOR-encoded, both on
// WebRTC data channels (mesh and relay-peer transports) and inside an
// [Envelope] relayed by the hub (server-relay transport).
//
// [Envelope] is the control and data unit on the relay server's
// websocket endpoints:
//
//   - hub (/relay): join, joined, message, presence, error
//   - broker (/peer): open, peer-joined, peer-left, offer, answer, error
//
// The Board* types are the JSON bodies of the relay board's HTTP API,
// which the mesh transport uses as its signaling bulletin board.
package schema
