// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/schema"
)

// DefaultMemberTTL is how long a board member survives without a
// re-announce when ServerConfig.MemberTTL is unset.
const DefaultMemberTTL = 30 * time.Second

// maxBoardKey bounds namespace and peer ID path segments.
const maxBoardKey = 256

// Board is the in-memory signaling bulletin board used by mesh clients.
// Members are scoped by namespace and expire after the configured TTL
// without a re-announce. A namespace's offers and answers are
// discarded with it once its last member is gone.
type Board struct {
	logger    *slog.Logger
	clock     clock.Clock
	memberTTL time.Duration

	mu         sync.Mutex
	namespaces map[string]*boardNamespace
}

type boardNamespace struct {
	// members maps peer ID to the time of its last announce.
	members map[string]time.Time
	// offers and answers are keyed "from|to". An answer's From is the
	// answerer and its To the offerer.
	offers  map[string]schema.BoardSignal
	answers map[string]schema.BoardSignal
}

// NewBoard returns an empty board.
func NewBoard(clk clock.Clock, memberTTL time.Duration, logger *slog.Logger) *Board {
	if memberTTL <= 0 {
		memberTTL = DefaultMemberTTL
	}
	return &Board{
		logger:     logger,
		clock:      clk,
		memberTTL:  memberTTL,
		namespaces: make(map[string]*boardNamespace),
	}
}

// Register adds the board routes to mux.
func (b *Board) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /board/{namespace}/members/{peer}", b.handleAnnounce)
	mux.HandleFunc("DELETE /board/{namespace}/members/{peer}", b.handleWithdraw)
	mux.HandleFunc("GET /board/{namespace}/members", b.handleMembers)
	mux.HandleFunc("PUT /board/{namespace}/offers/{from}/{to}", b.handlePublish("offers"))
	mux.HandleFunc("PUT /board/{namespace}/answers/{from}/{to}", b.handlePublish("answers"))
	mux.HandleFunc("GET /board/{namespace}/offers", b.handlePoll("offers", "target"))
	mux.HandleFunc("GET /board/{namespace}/answers", b.handlePoll("answers", "offerer"))
}

func (b *Board) handleAnnounce(writer http.ResponseWriter, request *http.Request) {
	namespace, peer, ok := pathKeys(writer, request, "namespace", "peer")
	if !ok {
		return
	}
	b.Announce(namespace, peer)
	writer.WriteHeader(http.StatusNoContent)
}

func (b *Board) handleWithdraw(writer http.ResponseWriter, request *http.Request) {
	namespace, peer, ok := pathKeys(writer, request, "namespace", "peer")
	if !ok {
		return
	}
	b.Withdraw(namespace, peer)
	writer.WriteHeader(http.StatusNoContent)
}

func (b *Board) handleMembers(writer http.ResponseWriter, request *http.Request) {
	namespace := request.PathValue("namespace")
	writeJSON(writer, schema.BoardMembers{Members: b.Members(namespace)})
}

func (b *Board) handlePublish(store string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		namespace, from, ok := pathKeys(writer, request, "namespace", "from")
		if !ok {
			return
		}
		to := request.PathValue("to")
		if to == "" || len(to) > maxBoardKey {
			http.Error(writer, "invalid recipient", http.StatusBadRequest)
			return
		}
		var body schema.BoardSDP
		if err := netutil.DecodeJSON(request.Body, &body); err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		if body.SDP == "" {
			http.Error(writer, "sdp required", http.StatusBadRequest)
			return
		}
		b.publish(store, namespace, from, to, body.SDP)
		writer.WriteHeader(http.StatusNoContent)
	}
}

func (b *Board) handlePoll(store, recipientParameter string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		recipient := request.URL.Query().Get(recipientParameter)
		if recipient == "" {
			http.Error(writer, recipientParameter+" query parameter required", http.StatusBadRequest)
			return
		}
		writeJSON(writer, schema.BoardSignals{Signals: b.signals(store, request.PathValue("namespace"), recipient)})
	}
}

// Announce records or refreshes peer in namespace.
func (b *Board) Announce(namespace, peer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.namespace(namespace).members[peer] = b.clock.Now()
}

// Withdraw removes peer from namespace.
func (b *Board) Withdraw(namespace, peer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ns, ok := b.namespaces[namespace]; ok {
		delete(ns.members, peer)
		b.dropIfEmpty(namespace, ns)
	}
}

// Members returns the live members of namespace, sorted.
func (b *Board) Members(namespace string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns, ok := b.sweep(namespace)
	if !ok {
		return []string{}
	}
	members := make([]string, 0, len(ns.members))
	for member := range ns.members {
		members = append(members, member)
	}
	sort.Strings(members)
	return members
}

// Namespaces returns the number of namespaces with live members.
func (b *Board) Namespaces() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweepAll()
	return len(b.namespaces)
}

// Run expires members and drops emptied namespaces once per member TTL
// until ctx is done.
func (b *Board) Run(ctx context.Context) {
	ticker := b.clock.NewTicker(b.memberTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			b.sweepAll()
			b.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// publish stores a signal. Signals for a namespace with no live members
// have no reader and are discarded.
func (b *Board) publish(store, namespace, from, to, sdp string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns, ok := b.sweep(namespace)
	if !ok {
		b.logger.Debug("discarding signal for empty namespace", "namespace", namespace, "store", store, "from", from)
		return
	}
	signals := ns.offers
	if store == "answers" {
		signals = ns.answers
	}

	key := from + "|" + to
	stamp := b.clock.Now().UTC()
	if previous, ok := signals[key]; ok {
		// Timestamps for one key must strictly increase so pollers
		// notice a republish within the clock's resolution.
		if last, err := time.Parse(time.RFC3339Nano, previous.Timestamp); err == nil && !stamp.After(last) {
			stamp = last.Add(time.Nanosecond)
		}
	}
	signals[key] = schema.BoardSignal{From: from, To: to, SDP: sdp, Timestamp: stamp.Format(time.RFC3339Nano)}
}

func (b *Board) signals(store, namespace, recipient string) []schema.BoardSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns, ok := b.sweep(namespace)
	if !ok {
		return []schema.BoardSignal{}
	}
	signals := ns.offers
	if store == "answers" {
		signals = ns.answers
	}
	result := []schema.BoardSignal{}
	for _, signal := range signals {
		if signal.To == recipient {
			result = append(result, signal)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].From < result[j].From })
	return result
}

// namespace returns the named namespace, creating it. Caller holds mu.
func (b *Board) namespace(name string) *boardNamespace {
	ns, ok := b.namespaces[name]
	if !ok {
		ns = &boardNamespace{
			members: make(map[string]time.Time),
			offers:  make(map[string]schema.BoardSignal),
			answers: make(map[string]schema.BoardSignal),
		}
		b.namespaces[name] = ns
	}
	return ns
}

// sweepAll sweeps every namespace. Caller holds mu.
func (b *Board) sweepAll() {
	for name := range b.namespaces {
		b.sweep(name)
	}
}

// sweep expires stale members of name and drops the namespace if none
// remain. Caller holds mu.
func (b *Board) sweep(name string) (*boardNamespace, bool) {
	ns, ok := b.namespaces[name]
	if !ok {
		return nil, false
	}
	cutoff := b.clock.Now().Add(-b.memberTTL)
	for member, seen := range ns.members {
		if seen.Before(cutoff) {
			delete(ns.members, member)
			b.logger.Debug("board member expired", "namespace", name, "peer", member)
		}
	}
	if b.dropIfEmpty(name, ns) {
		return nil, false
	}
	return ns, true
}

// dropIfEmpty deletes a namespace with no members. Caller holds mu.
func (b *Board) dropIfEmpty(name string, ns *boardNamespace) bool {
	if len(ns.members) > 0 {
		return false
	}
	delete(b.namespaces, name)
	return true
}

// pathKeys extracts and bounds two path values, writing 400 on failure.
func pathKeys(writer http.ResponseWriter, request *http.Request, first, second string) (string, string, bool) {
	firstValue, secondValue := request.PathValue(first), request.PathValue(second)
	if firstValue == "" || secondValue == "" || len(firstValue) > maxBoardKey || len(secondValue) > maxBoardKey {
		http.Error(writer, "invalid "+first+" or "+second, http.StatusBadRequest)
		return "", "", false
	}
	return firstValue, secondValue, true
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}
