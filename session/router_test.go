// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/bureau-foundation/parley/transport"
)

func TestRouterForwardsCurrentGeneration(t *testing.T) {
	var router Router
	var gotText, gotSender, gotPresence string

	bound := router.Install(Handlers{
		OnMessage: func(message transport.Message, senderID string) {
			gotText, gotSender = message.Text, senderID
		},
		OnPresence: func(kind transport.PresenceKind, username string) {
			gotPresence = string(kind) + ":" + username
		},
	})
	if bound.Generation != 1 {
		t.Errorf("Generation = %d, want 1", bound.Generation)
	}

	bound.OnMessage(transport.NewMessage("hi", "ada"), "peer-7")
	bound.OnPresence(transport.PresenceJoin, "ada")

	if gotText != "hi" || gotSender != "peer-7" {
		t.Errorf("forwarded %q from %q, want hi from peer-7", gotText, gotSender)
	}
	if gotPresence != "join:ada" {
		t.Errorf("presence = %q, want join:ada", gotPresence)
	}
}

func TestRouterDropsStaleGenerations(t *testing.T) {
	var router Router
	oldCalls, newCalls := 0, 0

	old := router.Install(Handlers{OnMessage: func(transport.Message, string) { oldCalls++ }})
	fresh := router.Install(Handlers{OnMessage: func(transport.Message, string) { newCalls++ }})

	old.OnMessage(transport.NewMessage("stale", "ada"), "a")
	fresh.OnMessage(transport.NewMessage("fresh", "ada"), "a")
	if oldCalls != 0 || newCalls != 1 {
		t.Errorf("calls old=%d new=%d, want 0 and 1", oldCalls, newCalls)
	}

	router.Revoke()
	fresh.OnMessage(transport.NewMessage("after revoke", "ada"), "a")
	fresh.OnPresence(transport.PresenceLeave, "ada")
	if newCalls != 1 {
		t.Errorf("calls after Revoke = %d, want 1", newCalls)
	}
	if router.Generation() != 3 {
		t.Errorf("Generation = %d, want 3", router.Generation())
	}
}

func TestRouterNilHandlers(t *testing.T) {
	var router Router
	bound := router.Install(Handlers{})
	// Must not panic.
	bound.OnMessage(transport.NewMessage("x", "y"), "z")
	bound.OnPresence(transport.PresenceJoin, "y")
}
