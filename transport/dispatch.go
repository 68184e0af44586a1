// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/schema"
)

// dispatcher holds a handle's registered callbacks and delivers inbound
// frames to them. Delivery holds the read lock for the duration of the
// callback; shutdown takes the write lock, so once shutdown returns no
// callback is running and none will start.
type dispatcher struct {
	logger *slog.Logger

	mu         sync.RWMutex
	onMessage  MessageHandler
	onPresence PresenceHandler
	closed     bool
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{logger: logger}
}

func (d *dispatcher) setMessageHandler(handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.onMessage = handler
	}
}

func (d *dispatcher) setPresenceHandler(handler PresenceHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.onPresence = handler
	}
}

// isClosed reports whether shutdown has been called.
func (d *dispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// shutdown drops both callbacks and waits for in-flight deliveries.
func (d *dispatcher) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.onMessage = nil
	d.onPresence = nil
}

// deliverData decodes a CBOR frame received from senderID and delivers it.
func (d *dispatcher) deliverData(data []byte, senderID string) {
	var frame schema.Frame
	if err := codec.Unmarshal(data, &frame); err != nil {
		d.logger.Debug("dropping undecodable frame", "sender", senderID, "error", err)
		return
	}
	d.deliver(&frame, senderID)
}

// deliver validates frame and invokes the matching callback, if any.
func (d *dispatcher) deliver(frame *schema.Frame, senderID string) {
	if frame == nil {
		return
	}
	if err := frame.Validate(); err != nil {
		d.logger.Debug("dropping invalid frame", "sender", senderID, "error", err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	switch frame.Kind {
	case schema.FrameMessage:
		if d.onMessage == nil {
			return
		}
		body := frame.Message
		d.onMessage(Message{Text: body.Text, Sender: body.Sender, Kind: body.Kind}, senderID)
	case schema.FramePresence:
		if d.onPresence == nil {
			return
		}
		d.onPresence(PresenceKind(frame.Presence.Kind), frame.Presence.Username)
	}
}

// messageFrame converts message into a wire frame, defaulting Kind.
func messageFrame(message Message) *schema.Frame {
	kind := message.Kind
	if kind == "" {
		kind = MessageKind
	}
	return &schema.Frame{
		Kind:    schema.FrameMessage,
		Message: &schema.MessageBody{Text: message.Text, Sender: message.Sender, Kind: kind},
	}
}

// presenceFrame converts a presence notification into a wire frame.
func presenceFrame(kind PresenceKind, username string) (*schema.Frame, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid presence kind %q", kind)
	}
	return &schema.Frame{
		Kind:     schema.FramePresence,
		Presence: &schema.PresenceBody{Kind: string(kind), Username: username},
	}, nil
}

// encodeFrame validates and CBOR-encodes frame for a data channel.
func encodeFrame(frame *schema.Frame) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	data, err := codec.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", frame.Kind, err)
	}
	return data, nil
}
