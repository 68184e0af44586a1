// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

// ErrHandleClosed is returned by Send and SendPresence on a closed handle.
var ErrHandleClosed = errors.New("transport: handle closed")

// errRejected marks a refusal by the remote side during Open: an
// error envelope, an unexpected reply, or a failed websocket handshake.
var errRejected = errors.New("rejected by server")

// Reason classifies why an Open failed.
type Reason int

const (
	ReasonUnknown Reason = iota
	// ReasonTimeout: the open timeout or the caller's deadline expired.
	ReasonTimeout
	// ReasonRejected: the server or broker answered and refused.
	ReasonRejected
	// ReasonUnreachable: the network or server could not be reached.
	ReasonUnreachable
	// ReasonCanceled: the caller cancelled the connect.
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonRejected:
		return "rejected"
	case ReasonUnreachable:
		return "unreachable"
	case ReasonCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ConnectError reports that one adapter failed to open a room.
//
//	var connectErr *transport.ConnectError
//	if errors.As(err, &connectErr) && connectErr.Reason == transport.ReasonTimeout { ... }
type ConnectError struct {
	Method Method
	Room   string
	Reason Reason
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connecting to room %q via %s: %s", e.Room, e.Method, e.Reason)
	}
	return fmt.Sprintf("connecting to room %q via %s: %s: %v", e.Room, e.Method, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NewConnectError wraps err, classifying it with ClassifyDialError. An
// err that already is a *ConnectError is returned unchanged.
func NewConnectError(method Method, room string, err error) *ConnectError {
	var existing *ConnectError
	if errors.As(err, &existing) {
		return existing
	}
	return &ConnectError{Method: method, Room: room, Reason: ClassifyDialError(err), Err: err}
}

// ClassifyDialError maps an error from dialing or handshaking onto a
// Reason.
func ClassifyDialError(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, errRejected), errors.Is(err, websocket.ErrBadHandshake):
		return ReasonRejected
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return ReasonUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonUnreachable
	}
	return ReasonUnknown
}

// AllTransportsFailedError reports that every adapter in a fallback
// cascade failed. Attempts holds one error per adapter whose Open ran, in
// order. Stopped is the context error that ended the cascade before the
// remaining adapters were tried, or nil if the list was exhausted.
type AllTransportsFailedError struct {
	Room     string
	Attempts []*ConnectError
	Stopped  error
}

func (e *AllTransportsFailedError) Error() string {
	if len(e.Attempts) == 0 {
		if e.Stopped != nil {
			return fmt.Sprintf("all transports failed for room %q: stopped before any attempt: %v", e.Room, e.Stopped)
		}
		return fmt.Sprintf("all transports failed for room %q: no transports configured", e.Room)
	}
	parts := make([]string, len(e.Attempts))
	for index, attempt := range e.Attempts {
		parts[index] = fmt.Sprintf("%s: %s", attempt.Method, attempt.Reason)
	}
	message := fmt.Sprintf("all transports failed for room %q (%s)", e.Room, strings.Join(parts, "; "))
	if e.Stopped != nil {
		message += fmt.Sprintf("; stopped: %v", e.Stopped)
	}
	return message
}

// Unwrap exposes every attempt, and Stopped, to errors.Is and errors.As.
func (e *AllTransportsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt)
	}
	if e.Stopped != nil {
		errs = append(errs, e.Stopped)
	}
	return errs
}
