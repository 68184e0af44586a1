// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"mesh", MethodMesh, false},
		{"relay-peer", MethodRelayPeer, false},
		{"server-relay", MethodServerRelay, false},
		{"webrtc", MethodMesh, false},
		{"PeerJS", MethodRelayPeer, false},
		{" websocket ", MethodServerRelay, false},
		{"MESH", MethodMesh, false},
		{"none", MethodNone, true},
		{"", MethodNone, true},
		{"carrier-pigeon", MethodNone, true},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := ParseMethod(test.input)
			if (err != nil) != test.wantErr {
				t.Fatalf("ParseMethod(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("ParseMethod(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestMethodValid(t *testing.T) {
	for _, method := range DefaultPriority {
		if !method.Valid() {
			t.Errorf("%q.Valid() = false, want true", method)
		}
	}
	if MethodNone.Valid() {
		t.Error("MethodNone.Valid() = true, want false")
	}
	if Method("bogus").Valid() {
		t.Error(`Method("bogus").Valid() = true, want false`)
	}
}

func TestMethodNext(t *testing.T) {
	tests := []struct {
		from Method
		want Method
	}{
		{MethodMesh, MethodRelayPeer},
		{MethodRelayPeer, MethodServerRelay},
		{MethodServerRelay, MethodMesh},
		{MethodNone, MethodMesh},
	}
	for _, test := range tests {
		if got := test.from.Next(); got != test.want {
			t.Errorf("%q.Next() = %q, want %q", test.from, got, test.want)
		}
	}
}

func TestNewMessage(t *testing.T) {
	message := NewMessage("hello", "ada")
	if message.Text != "hello" || message.Sender != "ada" || message.Kind != MessageKind {
		t.Errorf("NewMessage = %+v, want text hello, sender ada, kind %q", message, MessageKind)
	}
}
