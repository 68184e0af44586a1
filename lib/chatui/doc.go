// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal chat interface for one room.
//
// The [Model] is a bubbletea program: a scrolling viewport of the
// room's [chatlog.Log], a text input, and a status bar showing the
// room, the user, and the active transport. Connecting runs in a
// tea.Cmd, so the input stays live while a cascade is in flight.
//
// Transport callbacks run on transport goroutines. They append to the
// thread-safe log and nudge the program through a one-slot channel;
// the model re-renders from the log on the next update.
//
// Input:
//
//   - Enter sends the typed message.
//   - /switch <method> reconnects with exactly that transport; ctrl+t
//     cycles mesh, relay-peer, server-relay.
//   - /leave, esc, or ctrl+c quits. The caller sends the leave presence
//     and disconnects after the program returns.
package chatui
