// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP body and connection-error helpers shared
// by the board client and the relay server.
//
// Body helpers bound every read at MaxBodySize. Board requests and
// responses carry one SDP or a member list, so anything larger is a
// misbehaving peer.
//
// IsExpectedCloseError classifies errors that occur when the other side
// of a websocket hangs up normally.
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxBodySize bounds board request and response bodies: 1 MB. A complete
// SDP with gathered candidates is a few kilobytes.
const MaxBodySize int64 = 1 << 20

// ErrBodyTooLarge is returned when a body exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// ReadBody reads body up to MaxBodySize bytes and fails if more remain.
func ReadBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// DecodeJSON reads body with ReadBody and JSON-decodes it into v.
func DecodeJSON(body io.Reader, v any) error {
	data, err := ReadBody(body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

// ErrorBody reads an HTTP error response body for diagnostic messages.
// Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	return string(data)
}
