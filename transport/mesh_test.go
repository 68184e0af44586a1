// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/parley/lib/testutil"
)

func newTestMesh(signaler Signaler) *MeshAdapter {
	return NewMeshAdapter(MeshConfig{
		AppID:        "parley-test",
		Signaler:     signaler,
		PollInterval: 25 * time.Millisecond,
		OpenTimeout:  2 * time.Second,
		Logger:       testLogger(),
	})
}

// TestMeshRoundTrip opens two mesh handles on one MemorySignaler and
// verifies that a message and a presence event cross a real pion data
// channel over loopback.
func TestMeshRoundTrip(t *testing.T) {
	signaler := NewMemorySignaler()
	adapter := newTestMesh(signaler)
	ctx := context.Background()

	first, err := adapter.Open(ctx, "42017")
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	defer first.Close()
	second, err := adapter.Open(ctx, "42017")
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer second.Close()

	received := make(chan receivedMessage, 4)
	second.OnMessage(func(message Message, senderID string) {
		received <- receivedMessage{message, senderID}
	})
	presence := make(chan string, 4)
	second.OnPresence(func(kind PresenceKind, username string) {
		presence <- fmt.Sprintf("%s:%s", kind, username)
	})

	firstMesh := first.(*meshHandle)
	secondMesh := second.(*meshHandle)
	testutil.RequireEventually(t, 30*time.Second, func() bool {
		return len(firstMesh.openPeers()) == 1 && len(secondMesh.openPeers()) == 1
	}, "waiting for the data channel to open on both sides")

	if err := first.SendPresence(PresenceJoin, "ada"); err != nil {
		t.Fatalf("SendPresence: %v", err)
	}
	if err := first.Send(NewMessage("hello over mesh", "ada")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := testutil.RequireReceive(t, presence, 5*time.Second, "presence over mesh"); got != "join:ada" {
		t.Errorf("presence = %q, want %q", got, "join:ada")
	}
	got := testutil.RequireReceive(t, received, 5*time.Second, "message over mesh")
	if got.message.Text != "hello over mesh" || got.message.Sender != "ada" {
		t.Errorf("message = %+v, want hello over mesh from ada", got.message)
	}
	if got.senderID != firstMesh.peerID {
		t.Errorf("senderID = %q, want %q", got.senderID, firstMesh.peerID)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	members, err := signaler.Members(ctx, adapter.Namespace("42017"))
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0] != secondMesh.peerID {
		t.Errorf("members after close = %v, want only the second peer", members)
	}
	if err := first.Send(NewMessage("late", "ada")); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("Send after Close = %v, want ErrHandleClosed", err)
	}
}

func TestMeshOpenAlone(t *testing.T) {
	handle, err := newTestMesh(NewMemorySignaler()).Open(context.Background(), "42017")
	if err != nil {
		t.Fatalf("Open with no other members: %v", err)
	}
	if err := handle.Send(NewMessage("anyone?", "ada")); err != nil {
		t.Errorf("Send with no peers = %v, want nil", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close = %v, want nil", err)
	}
}

func TestMeshOpenFailures(t *testing.T) {
	signaler := NewMemorySignaler()
	signaler.SetError(&netOpError{syscall.ECONNREFUSED})

	_, err := newTestMesh(signaler).Open(context.Background(), "42017")
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	if connectErr.Method != MethodMesh || connectErr.Reason != ReasonUnreachable {
		t.Errorf("ConnectError = %s/%s, want mesh/unreachable", connectErr.Method, connectErr.Reason)
	}

	_, err = NewMeshAdapter(MeshConfig{}).Open(context.Background(), "42017")
	if !errors.As(err, &connectErr) || connectErr.Reason != ReasonUnknown {
		t.Errorf("Open without signaler = %v, want unknown ConnectError", err)
	}
}

func TestMeshNamespace(t *testing.T) {
	adapter := NewMeshAdapter(MeshConfig{})
	if got := adapter.Namespace("42017"); got != "parley:42017" {
		t.Errorf("Namespace = %q, want %q", got, "parley:42017")
	}
}

// netOpError wraps an errno the way a failed dial would.
type netOpError struct{ errno syscall.Errno }

func (e *netOpError) Error() string { return "dial tcp: " + e.errno.Error() }
func (e *netOpError) Unwrap() error { return e.errno }
