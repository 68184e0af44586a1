// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatlog keeps the in-memory message history of one room. The
// log is never persisted: leaving the room discards it.
package chatlog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/transport"
)

// DefaultLimit is the entry cap used when New is given a non-positive
// limit.
const DefaultLimit = 500

// TimestampGap is the silence after which the next entry shows its
// timestamp again.
const TimestampGap = 5 * time.Minute

// Kind distinguishes chat messages from system lines.
type Kind string

const (
	KindMessage Kind = "message"
	KindSystem  Kind = "system"
)

// Entry is one line of the log.
type Entry struct {
	ID        string
	Kind      Kind
	Text      string
	Sender    string
	SenderID  string
	Own       bool
	Timestamp time.Time
}

// Log is a capped, append-only list of entries. It is safe for
// concurrent use; transport callbacks append while the UI reads.
type Log struct {
	clock clock.Clock
	limit int

	mu      sync.Mutex
	entries []Entry
}

// New returns an empty log holding at most limit entries.
func New(clk clock.Clock, limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{clock: clk, limit: limit}
}

// AppendMessage records a chat message. own marks messages this client
// sent. The entry's ID and Timestamp are assigned here; message IDs are
// not carried on the wire.
func (l *Log) AppendMessage(message transport.Message, senderID string, own bool) Entry {
	return l.append(Entry{
		Kind:     KindMessage,
		Text:     message.Text,
		Sender:   message.Sender,
		SenderID: senderID,
		Own:      own,
	})
}

// AppendPresence records "<user> joined the room" or "<user> left the
// room" as a system line.
func (l *Log) AppendPresence(kind transport.PresenceKind, username string) Entry {
	text := username + " joined the room"
	if kind == transport.PresenceLeave {
		text = username + " left the room"
	}
	return l.AppendSystem(text)
}

// AppendSystem records a free-form system line, such as a transport
// switch or a connection error.
func (l *Log) AppendSystem(text string) Entry {
	return l.append(Entry{Kind: KindSystem, Text: text})
}

func (l *Log) append(entry Entry) Entry {
	entry.ID = uuid.NewString()
	entry.Timestamp = l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.limit; overflow > 0 {
		l.entries = append(l.entries[:0:0], l.entries[overflow:]...)
	}
	return entry
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ShowTimestamp reports whether entry i should render its timestamp:
// the first entry always does, later ones only after a gap of more
// than TimestampGap.
func (l *Log) ShowTimestamp(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ShowTimestamp(l.entries, i)
}

// ShowTimestamp applies the timestamp rule to a snapshot of entries.
func ShowTimestamp(entries []Entry, i int) bool {
	if i < 0 || i >= len(entries) {
		return false
	}
	if i == 0 {
		return true
	}
	return entries[i].Timestamp.Sub(entries[i-1].Timestamp) > TimestampGap
}

// Clear discards every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
