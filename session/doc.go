// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns a participant's connection to one room.
//
// [Controller] holds at most one open [transport.Handle]. Connect runs
// the fallback cascade over the configured priority; ConnectWithMethod
// opens exactly one named transport, always tearing down the current
// session first, even when the method is unchanged. Send and
// SendPresence delegate to the active handle and return
// [ErrNotConnected] when there is none.
//
// Transitions are serialized. A connect request that is overtaken by a
// newer one while its Open is in flight closes its fresh handle and
// returns [ErrSuperseded].
//
// [Router] stands between a handle's callbacks and the caller's
// [Handlers]. Every install bumps a generation number; callbacks bound
// to an older generation are dropped, so events racing with a teardown
// never reach the caller.
package session
