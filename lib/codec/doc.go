// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Parley's CBOR encoding configuration.
//
// Parley uses two serialization formats:
//
//   - CBOR for transport frames: chat and presence frames on WebRTC
//     data channels, and the envelopes exchanged with the relay hub and
//     the peer broker over websocket binary messages.
//   - JSON for the relay board's HTTP API and for configuration files
//     that choose the .json or .jsonc extension.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same frame always produces the same bytes. Unknown fields are ignored
// on decode, which lets newer peers add fields without breaking older
// ones in the same room.
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
package codec
