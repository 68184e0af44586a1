// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// Frame kinds.
const (
	FrameMessage  = "message"
	FramePresence = "presence"
)

// Presence kinds carried in PresenceBody.Kind.
const (
	PresenceJoin  = "join"
	PresenceLeave = "leave"
)

// MaxTextLength bounds the text of one chat message in bytes. Longer
// frames are rejected on receipt.
const MaxTextLength = 16 << 10

// Frame carries exactly one of Message or Presence, selected by Kind.
type Frame struct {
	Kind     string        `cbor:"kind"`
	Message  *MessageBody  `cbor:"message,omitempty"`
	Presence *PresenceBody `cbor:"presence,omitempty"`
}

// MessageBody is a chat message as sent by its author. Identifiers and
// timestamps are assigned locally by each receiver, not carried on the
// wire.
type MessageBody struct {
	Text   string `cbor:"text"`
	Sender string `cbor:"sender"`
	Kind   string `cbor:"kind"`
}

// PresenceBody announces that Username joined or left the room.
type PresenceBody struct {
	Kind     string `cbor:"kind"`
	Username string `cbor:"username"`
}

// Validate checks that the frame is well-formed.
func (f *Frame) Validate() error {
	switch f.Kind {
	case FrameMessage:
		if f.Message == nil {
			return errors.New("message frame without message body")
		}
		if len(f.Message.Text) > MaxTextLength {
			return fmt.Errorf("message text is %d bytes, limit is %d", len(f.Message.Text), MaxTextLength)
		}
		return nil
	case FramePresence:
		if f.Presence == nil {
			return errors.New("presence frame without presence body")
		}
		if f.Presence.Kind != PresenceJoin && f.Presence.Kind != PresenceLeave {
			return fmt.Errorf("unknown presence kind %q", f.Presence.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown frame kind %q", f.Kind)
	}
}
