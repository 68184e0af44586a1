// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/schema"
)

// maxEnvelopeSize bounds one inbound websocket message. An envelope
// holds one frame or one SDP.
const maxEnvelopeSize = 64 << 10

// defaultWriteTimeout bounds each websocket write when the adapter
// config leaves it unset.
const defaultWriteTimeout = 5 * time.Second

// closeWriteTimeout bounds the close frame written during Close.
const closeWriteTimeout = time.Second

// wsConn wraps a websocket carrying CBOR envelopes. Writes are
// serialized; a single read loop owns the read side.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// dialWebsocket dials rawURL. The handshake is bounded by ctx.
func dialWebsocket(ctx context.Context, dialer *websocket.Dialer, rawURL string, writeTimeout time.Duration) (*wsConn, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, response, err := dialer.DialContext(ctx, rawURL, nil)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("dialing %s: status %d: %w", rawURL, response.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", rawURL, err)
	}
	conn.SetReadLimit(maxEnvelopeSize)
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout}, nil
}

// writeEnvelope encodes and writes one envelope.
func (c *wsConn) writeEnvelope(envelope *schema.Envelope) error {
	data, err := codec.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", envelope.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// readEnvelope reads the next binary message as an envelope. Text and
// undecodable messages are skipped.
func (c *wsConn) readEnvelope() (*schema.Envelope, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		var envelope schema.Envelope
		if err := codec.Unmarshal(data, &envelope); err != nil {
			continue
		}
		return &envelope, nil
	}
}

// awaitEnvelope reads one envelope, giving up when ctx ends.
func (c *wsConn) awaitEnvelope(ctx context.Context) (*schema.Envelope, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})

	envelope, err := c.readEnvelope()
	if !stop() {
		// ctx ended during the read and poisoned the deadline.
		return nil, ctx.Err()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	c.conn.SetReadDeadline(time.Time{})
	return envelope, nil
}

// close sends a normal close frame and closes the socket.
func (c *wsConn) close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
