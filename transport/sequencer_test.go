// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
)

func TestSequencerFirstSuccessWins(t *testing.T) {
	network := NewMemoryNetwork()
	mesh := NewMemoryAdapter(network, MethodMesh, testLogger())
	relayPeer := NewMemoryAdapter(network, MethodRelayPeer, testLogger())

	sequencer := NewSequencer([]Adapter{mesh, relayPeer}, testLogger())
	handle, method, err := sequencer.Open(context.Background(), "42017")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer handle.Close()

	if method != MethodMesh {
		t.Errorf("method = %q, want mesh", method)
	}
	if got := relayPeer.Stats().Opens; got != 0 {
		t.Errorf("relay-peer opens = %d, want 0", got)
	}
}

func TestSequencerFallsThrough(t *testing.T) {
	network := NewMemoryNetwork()
	adapters := []*MemoryAdapter{
		NewMemoryAdapter(network, MethodMesh, testLogger()),
		NewMemoryAdapter(network, MethodRelayPeer, testLogger()),
		NewMemoryAdapter(network, MethodServerRelay, testLogger()),
	}
	adapters[0].FailOpen(context.DeadlineExceeded)
	adapters[1].FailOpen(syscall.ECONNREFUSED)

	var (
		mu     sync.Mutex
		events []string
		live   int
		peak   int
	)
	list := make([]Adapter, len(adapters))
	for index, adapter := range adapters {
		adapter.Observe(func(event string) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			switch event[:5] {
			case "open:":
				live++
			case "close":
				live--
			}
			if live > peak {
				peak = live
			}
		})
		list[index] = adapter
	}

	handle, method, err := NewSequencer(list, testLogger()).Open(context.Background(), "42017")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer handle.Close()

	if method != MethodServerRelay {
		t.Errorf("method = %q, want server-relay", method)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("peak live handles = %d, want 1", peak)
	}
	if len(events) != 1 || events[0] != "open:server-relay" {
		t.Errorf("events = %v, want [open:server-relay]", events)
	}
}

func TestSequencerAllFail(t *testing.T) {
	network := NewMemoryNetwork()
	mesh := NewMemoryAdapter(network, MethodMesh, testLogger())
	relayPeer := NewMemoryAdapter(network, MethodRelayPeer, testLogger())
	mesh.FailOpen(context.DeadlineExceeded)
	relayPeer.FailOpen(errors.New("broker exploded"))

	handle, method, err := NewSequencer([]Adapter{mesh, relayPeer}, testLogger()).Open(context.Background(), "42017")
	if handle != nil {
		t.Fatal("handle returned alongside failure")
	}
	if method != MethodNone {
		t.Errorf("method = %q, want none", method)
	}

	var failure *AllTransportsFailedError
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want *AllTransportsFailedError", err)
	}
	if len(failure.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(failure.Attempts))
	}
	if failure.Attempts[0].Method != MethodMesh || failure.Attempts[0].Reason != ReasonTimeout {
		t.Errorf("attempt 0 = %s/%s, want mesh/timeout", failure.Attempts[0].Method, failure.Attempts[0].Reason)
	}
	if failure.Attempts[1].Method != MethodRelayPeer || failure.Attempts[1].Reason != ReasonUnknown {
		t.Errorf("attempt 1 = %s/%s, want relay-peer/unknown", failure.Attempts[1].Method, failure.Attempts[1].Reason)
	}
}

func TestSequencerStopsOnCancel(t *testing.T) {
	network := NewMemoryNetwork()
	mesh := NewMemoryAdapter(network, MethodMesh, testLogger())
	serverRelay := NewMemoryAdapter(network, MethodServerRelay, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	mesh.FailOpen(errors.New("unreachable"))
	cancel()

	_, _, err := NewSequencer([]Adapter{mesh, serverRelay}, testLogger()).Open(ctx, "42017")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled in chain", err)
	}
	if got := serverRelay.Stats().Opens; got != 0 {
		t.Errorf("server-relay opens = %d, want 0 after cancel", got)
	}
	var failure *AllTransportsFailedError
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want *AllTransportsFailedError", err)
	}
	if len(failure.Attempts) != 0 {
		t.Errorf("attempts = %d, want 0 when no Open ran", len(failure.Attempts))
	}
	if !errors.Is(failure.Stopped, context.Canceled) {
		t.Errorf("Stopped = %v, want context.Canceled", failure.Stopped)
	}
}

// scriptedAdapter runs open on every Open and counts the calls.
type scriptedAdapter struct {
	method Method
	open   func() error
	calls  int
}

func (a *scriptedAdapter) Method() Method { return a.method }

func (a *scriptedAdapter) Open(ctx context.Context, roomID string) (Handle, error) {
	a.calls++
	return nil, NewConnectError(a.method, roomID, a.open())
}

func TestSequencerCancelBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mesh := &scriptedAdapter{method: MethodMesh, open: func() error {
		cancel()
		return errors.New("unreachable")
	}}
	relayPeer := &scriptedAdapter{method: MethodRelayPeer, open: func() error { return errors.New("unreachable") }}
	serverRelay := &scriptedAdapter{method: MethodServerRelay, open: func() error { return errors.New("unreachable") }}

	_, _, err := NewSequencer([]Adapter{mesh, relayPeer, serverRelay}, testLogger()).Open(ctx, "42017")
	var failure *AllTransportsFailedError
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want *AllTransportsFailedError", err)
	}
	if len(failure.Attempts) != 1 || failure.Attempts[0].Method != MethodMesh {
		t.Fatalf("attempts = %v, want only the mesh attempt", failure.Attempts)
	}
	if !errors.Is(failure.Stopped, context.Canceled) {
		t.Errorf("Stopped = %v, want context.Canceled", failure.Stopped)
	}
	if relayPeer.calls != 0 || serverRelay.calls != 0 {
		t.Errorf("opens after cancel: relay-peer=%d server-relay=%d, want 0", relayPeer.calls, serverRelay.calls)
	}
	if !strings.Contains(err.Error(), "stopped: context canceled") {
		t.Errorf("error = %q, want the stop reason", err)
	}
}

func TestSequencerEmpty(t *testing.T) {
	_, _, err := NewSequencer(nil, nil).Open(context.Background(), "42017")
	var failure *AllTransportsFailedError
	if !errors.As(err, &failure) || len(failure.Attempts) != 0 {
		t.Fatalf("error = %v, want empty *AllTransportsFailedError", err)
	}
}
