// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/schema"
)

const (
	// maxEnvelopeSize bounds one inbound websocket message.
	maxEnvelopeSize = 64 << 10

	// pongWait is how long a client may stay silent, pongs included,
	// before the server drops it.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = pongWait * 9 / 10

	// DefaultWriteTimeout bounds each envelope write when unset.
	DefaultWriteTimeout = 5 * time.Second
)

// upgrader accepts any origin. Parley clients are native programs, and
// rooms carry no authority worth a cross-site attack.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// client is one websocket connection to the hub or the broker. Writes
// are serialized by writeMu; only the owning handler goroutine reads.
type client struct {
	id           string
	room         string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, id, room string, writeTimeout time.Duration) *client {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	conn.SetReadLimit(maxEnvelopeSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &client{
		id:           id,
		room:         room,
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// write sends one pre-encoded envelope.
func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// send encodes and writes envelope.
func (c *client) send(envelope *schema.Envelope) error {
	data, err := codec.Marshal(envelope)
	if err != nil {
		return err
	}
	return c.write(data)
}

// read returns the next decodable binary envelope.
func (c *client) read() (*schema.Envelope, error) {
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

// keepalive pings the client until it is closed.
func (c *client) keepalive(clk clock.Clock) {
	ticker := clk.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		}
	}
}

// reject sends an error envelope and closes the connection.
func (c *client) reject(reason string) {
	c.send(&schema.Envelope{Type: schema.EnvelopeError, Reason: reason})
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(c.writeTimeout))
	c.writeMu.Unlock()
	c.close()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
