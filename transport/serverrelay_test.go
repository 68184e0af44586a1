// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/schema"
	"github.com/bureau-foundation/parley/lib/testutil"
)

// scriptedServer upgrades each request and hands the socket to script.
func scriptedServer(t *testing.T, script func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readTestEnvelope(conn *websocket.Conn) (*schema.Envelope, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var envelope schema.Envelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

func writeTestEnvelope(conn *websocket.Conn, envelope *schema.Envelope) error {
	data, err := codec.Marshal(envelope)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func newTestServerRelay(serverURL string, openTimeout time.Duration) *ServerRelayAdapter {
	return NewServerRelayAdapter(ServerRelayConfig{
		ServerURL:   serverURL,
		OpenTimeout: openTimeout,
		Logger:      testLogger(),
	})
}

func TestServerRelayExchange(t *testing.T) {
	outbound := make(chan *schema.Envelope, 4)
	serverURL := scriptedServer(t, func(conn *websocket.Conn) {
		join, err := readTestEnvelope(conn)
		if err != nil || join.Type != schema.EnvelopeJoin || join.Room != "42017" {
			writeTestEnvelope(conn, &schema.Envelope{Type: schema.EnvelopeError, Reason: "bad join"})
			return
		}
		writeTestEnvelope(conn, &schema.Envelope{Type: schema.EnvelopeJoined, ID: "conn-1"})
		writeTestEnvelope(conn, &schema.Envelope{
			Type: schema.EnvelopeMessage,
			From: "conn-2",
			Frame: &schema.Frame{Kind: schema.FrameMessage,
				Message: &schema.MessageBody{Text: "hi", Sender: "bob", Kind: "message"}},
		})
		for {
			envelope, err := readTestEnvelope(conn)
			if err != nil {
				return
			}
			outbound <- envelope
		}
	})

	handle, err := newTestServerRelay(serverURL, 2*time.Second).Open(context.Background(), "42017")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer handle.Close()

	received := make(chan receivedMessage, 1)
	handle.OnMessage(func(message Message, senderID string) {
		received <- receivedMessage{message, senderID}
	})

	// The pushed message may arrive before registration and be dropped,
	// so only check what arrives.
	select {
	case got := <-received:
		if got.message.Text != "hi" || got.senderID != "conn-2" {
			t.Errorf("received %+v from %q, want hi from conn-2", got.message, got.senderID)
		}
	case <-time.After(100 * time.Millisecond):
	}

	if err := handle.Send(NewMessage("hello relay", "ada")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := handle.SendPresence(PresenceLeave, "ada"); err != nil {
		t.Fatalf("SendPresence: %v", err)
	}

	message := testutil.RequireReceive(t, outbound, 2*time.Second, "message envelope")
	if message.Type != schema.EnvelopeMessage || message.Frame == nil || message.Frame.Message.Text != "hello relay" {
		t.Errorf("outbound = %+v, want message envelope with text", message)
	}
	presence := testutil.RequireReceive(t, outbound, 2*time.Second, "presence envelope")
	if presence.Type != schema.EnvelopePresence || presence.Frame.Presence.Kind != schema.PresenceLeave {
		t.Errorf("outbound = %+v, want leave presence", presence)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := handle.Send(NewMessage("late", "ada")); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("Send after Close = %v, want ErrHandleClosed", err)
	}
}

func TestServerRelayOpenFailures(t *testing.T) {
	rejecting := scriptedServer(t, func(conn *websocket.Conn) {
		readTestEnvelope(conn)
		writeTestEnvelope(conn, &schema.Envelope{Type: schema.EnvelopeError, Reason: "room required"})
	})
	silent := scriptedServer(t, func(conn *websocket.Conn) {
		readTestEnvelope(conn)
		conn.ReadMessage()
	})
	refusing := httptest.NewServer(http.NotFoundHandler())
	defer refusing.Close()

	closedServer := httptest.NewServer(http.NotFoundHandler())
	closedURL := "ws" + strings.TrimPrefix(closedServer.URL, "http")
	closedServer.Close()

	tests := []struct {
		name string
		url  string
		want Reason
	}{
		{"error envelope", rejecting, ReasonRejected},
		{"no reply", silent, ReasonTimeout},
		{"not a websocket", "ws" + strings.TrimPrefix(refusing.URL, "http"), ReasonRejected},
		{"nothing listening", closedURL, ReasonUnreachable},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := newTestServerRelay(test.url, 200*time.Millisecond).Open(context.Background(), "42017")
			var connectErr *ConnectError
			if !errors.As(err, &connectErr) {
				t.Fatalf("error = %v, want *ConnectError", err)
			}
			if connectErr.Method != MethodServerRelay {
				t.Errorf("Method = %q, want server-relay", connectErr.Method)
			}
			if connectErr.Reason != test.want {
				t.Errorf("Reason = %s (%v), want %s", connectErr.Reason, err, test.want)
			}
		})
	}
}

func TestServerRelayRequiresURL(t *testing.T) {
	_, err := NewServerRelayAdapter(ServerRelayConfig{}).Open(context.Background(), "42017")
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) || connectErr.Reason != ReasonUnknown {
		t.Errorf("Open without URL = %v, want unknown ConnectError", err)
	}
}
