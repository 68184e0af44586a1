// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/parley/transport"
)

// ErrNotConnected is returned by Send and SendPresence when no handle
// is active, including while a connect is in flight.
var ErrNotConnected = errors.New("session: not connected")

// ErrSuperseded is returned by a connect whose Open succeeded after a
// newer connect request was already waiting. The fresh handle has been
// closed.
var ErrSuperseded = errors.New("session: connect superseded by a newer request")

// ErrUnknownMethod is wrapped in the ConnectError returned when
// ConnectWithMethod names a transport with no configured adapter.
var ErrUnknownMethod = errors.New("session: transport not configured")

// TeardownError records a handle Close failure during Disconnect. It is
// logged, never returned: the session is cleared regardless.
type TeardownError struct {
	Method transport.Method
	Room   string
	Err    error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("closing %s handle for room %q: %v", e.Method, e.Room, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
