// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/testutil"
	"github.com/bureau-foundation/parley/transport"
)

func newTestBoard(t *testing.T) (*clock.FakeClock, *Server, *transport.BoardSignaler) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	server, baseURL := startServer(t, ServerConfig{MemberTTL: 30 * time.Second, Clock: fake})
	signaler, err := transport.NewBoardSignaler(baseURL, nil)
	if err != nil {
		t.Fatalf("NewBoardSignaler: %v", err)
	}
	return fake, server, signaler
}

func TestBoardMembership(t *testing.T) {
	_, server, signaler := newTestBoard(t)
	ctx := context.Background()

	for _, peer := range []string{"peer-b", "peer-a"} {
		if err := signaler.Announce(ctx, "parley:42017", peer); err != nil {
			t.Fatalf("Announce %s: %v", peer, err)
		}
	}
	if err := signaler.Announce(ctx, "parley:99999", "peer-c"); err != nil {
		t.Fatalf("Announce peer-c: %v", err)
	}

	members, err := signaler.Members(ctx, "parley:42017")
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if !slices.Equal(members, []string{"peer-a", "peer-b"}) {
		t.Errorf("Members = %v, want [peer-a peer-b]", members)
	}

	if err := signaler.Withdraw(ctx, "parley:42017", "peer-a"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	members, _ = signaler.Members(ctx, "parley:42017")
	if !slices.Equal(members, []string{"peer-b"}) {
		t.Errorf("Members after withdraw = %v, want [peer-b]", members)
	}

	empty, err := signaler.Members(ctx, "parley:00000")
	if err != nil {
		t.Fatalf("Members of unknown namespace: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown namespace members = %v, want none", empty)
	}
	if got := server.Board().Namespaces(); got != 2 {
		t.Errorf("Namespaces = %d, want 2", got)
	}
}

func TestBoardMembersExpire(t *testing.T) {
	fake, server, signaler := newTestBoard(t)
	ctx := context.Background()

	signaler.Announce(ctx, "parley:42017", "peer-a")
	signaler.Announce(ctx, "parley:42017", "peer-b")

	fake.Advance(20 * time.Second)
	signaler.Announce(ctx, "parley:42017", "peer-b")
	fake.Advance(20 * time.Second)

	members, err := signaler.Members(ctx, "parley:42017")
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if !slices.Equal(members, []string{"peer-b"}) {
		t.Errorf("Members = %v, want only the re-announced peer-b", members)
	}

	fake.Advance(31 * time.Second)
	if got := server.Board().Namespaces(); got != 0 {
		t.Errorf("Namespaces after every member expired = %d, want 0", got)
	}
}

func TestBoardOffersAndAnswers(t *testing.T) {
	_, _, signaler := newTestBoard(t)
	ctx := context.Background()
	const namespace = "parley:42017"

	signaler.Announce(ctx, namespace, "peer-a")
	signaler.Announce(ctx, namespace, "peer-b")

	if err := signaler.PublishOffer(ctx, namespace, "peer-a", "peer-b", "offer-1"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	offers, err := signaler.PollOffers(ctx, namespace, "peer-b")
	if err != nil {
		t.Fatalf("PollOffers: %v", err)
	}
	if len(offers) != 1 || offers[0].PeerID != "peer-a" || offers[0].SDP != "offer-1" {
		t.Fatalf("PollOffers = %+v, want the offer from peer-a", offers)
	}
	if others, _ := signaler.PollOffers(ctx, namespace, "peer-a"); len(others) != 0 {
		t.Errorf("offers for peer-a = %+v, want none", others)
	}

	// The fake clock has not moved, so only the board's strictly
	// increasing timestamps let the republished offer through.
	signaler.PublishOffer(ctx, namespace, "peer-a", "peer-b", "offer-2")
	offers, _ = signaler.PollOffers(ctx, namespace, "peer-b")
	if len(offers) != 1 || offers[0].SDP != "offer-2" {
		t.Fatalf("PollOffers after republish = %+v, want offer-2", offers)
	}
	if again, _ := signaler.PollOffers(ctx, namespace, "peer-b"); len(again) != 0 {
		t.Errorf("second poll = %+v, want nothing new", again)
	}

	if err := signaler.PublishAnswer(ctx, namespace, "peer-a", "peer-b", "answer-1"); err != nil {
		t.Fatalf("PublishAnswer: %v", err)
	}
	answers, err := signaler.PollAnswers(ctx, namespace, "peer-a")
	if err != nil {
		t.Fatalf("PollAnswers: %v", err)
	}
	if len(answers) != 1 || answers[0].PeerID != "peer-b" || answers[0].SDP != "answer-1" {
		t.Errorf("PollAnswers = %+v, want the answer from peer-b", answers)
	}
}

func TestBoardDiscardsSignalsWithNamespace(t *testing.T) {
	_, _, signaler := newTestBoard(t)
	ctx := context.Background()
	const namespace = "parley:42017"

	signaler.Announce(ctx, namespace, "peer-a")
	signaler.PublishOffer(ctx, namespace, "peer-a", "peer-b", "offer-1")
	signaler.Withdraw(ctx, namespace, "peer-a")
	signaler.Announce(ctx, namespace, "peer-b")

	offers, err := signaler.PollOffers(ctx, namespace, "peer-b")
	if err != nil {
		t.Fatalf("PollOffers: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("PollOffers = %+v, want signals discarded with the emptied namespace", offers)
	}
}

// storedNamespaces counts namespaces without sweeping them.
func storedNamespaces(board *Board) int {
	board.mu.Lock()
	defer board.mu.Unlock()
	return len(board.namespaces)
}

func TestBoardDiscardsSignalsForEmptyNamespace(t *testing.T) {
	_, server, signaler := newTestBoard(t)
	ctx := context.Background()

	if err := signaler.PublishOffer(ctx, "parley:abandoned", "peer-a", "peer-b", "offer-1"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	if err := signaler.PublishAnswer(ctx, "parley:abandoned", "peer-b", "peer-a", "answer-1"); err != nil {
		t.Fatalf("PublishAnswer: %v", err)
	}
	if got := storedNamespaces(server.Board()); got != 0 {
		t.Errorf("stored namespaces = %d, want 0 after publishing to an empty namespace", got)
	}

	signaler.Announce(ctx, "parley:abandoned", "peer-b")
	if offers, _ := signaler.PollOffers(ctx, "parley:abandoned", "peer-b"); len(offers) != 0 {
		t.Errorf("PollOffers = %+v, want the earlier offer discarded", offers)
	}
}

func TestBoardRunSweepsExpiredNamespaces(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	board := NewBoard(fake, 30*time.Second, testLogger())
	board.Announce("parley:42017", "peer-a")
	board.Announce("parley:99999", "peer-b")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		board.Run(ctx)
		close(done)
	}()
	fake.WaitForTickers(1)

	fake.Advance(20 * time.Second)
	board.Announce("parley:99999", "peer-b")
	fake.Advance(11 * time.Second)
	testutil.RequireEventually(t, testTimeout, func() bool {
		return storedNamespaces(board) == 1
	}, "waiting for the idle namespace to be swept")

	fake.Advance(30 * time.Second)
	testutil.RequireEventually(t, testTimeout, func() bool {
		return storedNamespaces(board) == 0
	}, "waiting for the last namespace to be swept")

	cancel()
	testutil.RequireClosed(t, done, testTimeout, "waiting for Run to return")
}

func TestBoardRejectsBadRequests(t *testing.T) {
	_, baseURL := startServer(t, ServerConfig{})
	longID := strings.Repeat("x", maxBoardKey+1)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"oversized peer", http.MethodPut, "/board/ns/members/" + longID, "", http.StatusBadRequest},
		{"offer without body", http.MethodPut, "/board/ns/offers/a/b", "", http.StatusBadRequest},
		{"offer with empty sdp", http.MethodPut, "/board/ns/offers/a/b", `{"sdp":""}`, http.StatusBadRequest},
		{"offer with bad json", http.MethodPut, "/board/ns/offers/a/b", `{`, http.StatusBadRequest},
		{"poll without target", http.MethodGet, "/board/ns/offers", "", http.StatusBadRequest},
		{"poll without offerer", http.MethodGet, "/board/ns/answers", "", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/board/ns/members/a", "", http.StatusMethodNotAllowed},
		{"valid offer", http.MethodPut, "/board/ns/offers/a/b", `{"sdp":"v=0"}`, http.StatusNoContent},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request, err := http.NewRequest(test.method, baseURL+test.path, strings.NewReader(test.body))
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			response, err := http.DefaultClient.Do(request)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			response.Body.Close()
			if response.StatusCode != test.want {
				t.Errorf("status = %d, want %d", response.StatusCode, test.want)
			}
		})
	}
}

func TestBoardErrorsClassifyAsRejected(t *testing.T) {
	_, baseURL := startServer(t, ServerConfig{})
	signaler, err := transport.NewBoardSignaler(baseURL, nil)
	if err != nil {
		t.Fatalf("NewBoardSignaler: %v", err)
	}
	err = signaler.Announce(context.Background(), "ns", strings.Repeat("x", maxBoardKey+1))
	if err == nil {
		t.Fatal("Announce with oversized ID succeeded, want an error")
	}
	if got := transport.ClassifyDialError(err); got != transport.ReasonRejected {
		t.Errorf("ClassifyDialError = %s, want %s", got, transport.ReasonRejected)
	}
}
