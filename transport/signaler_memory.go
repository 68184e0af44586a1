// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Signaler = (*MemorySignaler)(nil)

// MemorySignaler is an in-process Signaler for tests. Two MeshAdapters
// sharing one MemorySignaler can establish PeerConnections without any
// network signaling.
type MemorySignaler struct {
	mu         sync.Mutex
	namespaces map[string]*memoryNamespace
	// lastSeen maps "store:namespace:consumer:key" to the sequence of
	// the newest signal already returned to that consumer.
	lastSeen map[string]uint64
	sequence uint64
	err      error
}

type memoryNamespace struct {
	members map[string]struct{}
	offers  map[string]memorySignal // key: "offerer|target"
	answers map[string]memorySignal // key: "offerer|answerer"
}

type memorySignal struct {
	message  SignalMessage
	sequence uint64
}

// NewMemorySignaler creates a new in-process signaler.
func NewMemorySignaler() *MemorySignaler {
	return &MemorySignaler{
		namespaces: make(map[string]*memoryNamespace),
		lastSeen:   make(map[string]uint64),
	}
}

// SetError makes every subsequent operation fail with err, simulating an
// unreachable board. A nil err restores normal operation.
func (s *MemorySignaler) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// namespace returns the namespace state, creating it. Caller holds mu.
func (s *MemorySignaler) namespace(name string) *memoryNamespace {
	ns, ok := s.namespaces[name]
	if !ok {
		ns = &memoryNamespace{
			members: make(map[string]struct{}),
			offers:  make(map[string]memorySignal),
			answers: make(map[string]memorySignal),
		}
		s.namespaces[name] = ns
	}
	return ns
}

func (s *MemorySignaler) Announce(ctx context.Context, namespace, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.namespace(namespace).members[peerID] = struct{}{}
	return nil
}

func (s *MemorySignaler) Withdraw(ctx context.Context, namespace, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil
	}
	delete(ns.members, peerID)
	if len(ns.members) == 0 {
		delete(s.namespaces, namespace)
	}
	return nil
}

func (s *MemorySignaler) Members(ctx context.Context, namespace string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(ns.members))
	for member := range ns.members {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (s *MemorySignaler) PublishOffer(ctx context.Context, namespace, offererID, targetID, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.sequence++
	s.namespace(namespace).offers[offererID+signalingSeparator+targetID] = memorySignal{
		message: SignalMessage{
			PeerID:    offererID,
			SDP:       sdp,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		},
		sequence: s.sequence,
	}
	return nil
}

func (s *MemorySignaler) PublishAnswer(ctx context.Context, namespace, offererID, answererID, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.sequence++
	s.namespace(namespace).answers[offererID+signalingSeparator+answererID] = memorySignal{
		message: SignalMessage{
			PeerID:    answererID,
			SDP:       sdp,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		},
		sequence: s.sequence,
	}
	return nil
}

func (s *MemorySignaler) PollOffers(ctx context.Context, namespace, peerID string) ([]SignalMessage, error) {
	return s.pollSignals(ctx, namespace, peerID, "offers", func(ns *memoryNamespace) map[string]memorySignal {
		return ns.offers
	}, func(key string) bool {
		return strings.HasSuffix(key, signalingSeparator+peerID)
	})
}

func (s *MemorySignaler) PollAnswers(ctx context.Context, namespace, peerID string) ([]SignalMessage, error) {
	return s.pollSignals(ctx, namespace, peerID, "answers", func(ns *memoryNamespace) map[string]memorySignal {
		return ns.answers
	}, func(key string) bool {
		return strings.HasPrefix(key, peerID+signalingSeparator)
	})
}

// pollSignals returns the signals in one store whose keys match,
// skipping those already returned to peerID.
func (s *MemorySignaler) pollSignals(ctx context.Context, namespace, peerID, storeLabel string, store func(*memoryNamespace) map[string]memorySignal, match func(key string) bool) ([]SignalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil, nil
	}

	var messages []SignalMessage
	for key, signal := range store(ns) {
		if !match(key) {
			continue
		}
		seenKey := storeLabel + ":" + namespace + ":" + peerID + ":" + key
		if last, ok := s.lastSeen[seenKey]; ok && signal.sequence <= last {
			continue
		}
		s.lastSeen[seenKey] = signal.sequence
		messages = append(messages, signal.message)
	}
	return messages, nil
}

// check returns the injected error or the context's. Caller holds mu.
func (s *MemorySignaler) check(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}
