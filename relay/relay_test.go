// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/schema"
)

// testTimeout bounds waits on server-side state.
const testTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// startServer serves a relay Server on an httptest listener and
// returns it with its http:// base URL.
func startServer(t *testing.T, config ServerConfig) (*Server, string) {
	t.Helper()
	if config.Logger == nil {
		config.Logger = testLogger()
	}
	server := NewServer(config)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		server.Close()
		httpServer.Close()
	})
	return server, httpServer.URL
}

func websocketURL(baseURL, path string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func dialTest(t *testing.T, target string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", target, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, envelope *schema.Envelope) {
	t.Helper()
	data, err := codec.Marshal(envelope)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *schema.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", messageType)
	}
	var envelope schema.Envelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return &envelope
}

func messageFrame(text, sender string) *schema.Frame {
	return &schema.Frame{
		Kind:    schema.FrameMessage,
		Message: &schema.MessageBody{Text: text, Sender: sender, Kind: "message"},
	}
}
