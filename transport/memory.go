// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/lib/schema"
)

// Compile-time interface checks.
var (
	_ Adapter = (*MemoryAdapter)(nil)
	_ Handle  = (*memoryHandle)(nil)
)

// MemoryNetwork is an in-process room fabric shared by MemoryAdapters.
// Frames sent on a handle are CBOR round-tripped and delivered to every
// other handle open on the same room, on the same network, whatever
// Method their adapter reports.
type MemoryNetwork struct {
	mu      sync.Mutex
	rooms   map[string]map[*memoryHandle]struct{}
	counter int
}

// NewMemoryNetwork returns an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{rooms: make(map[string]map[*memoryHandle]struct{})}
}

// Members returns the number of handles open on roomID.
func (n *MemoryNetwork) Members(roomID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rooms[roomID])
}

func (n *MemoryNetwork) join(handle *memoryHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counter++
	handle.id = fmt.Sprintf("%s-%d", handle.adapter.method, n.counter)
	members, ok := n.rooms[handle.room]
	if !ok {
		members = make(map[*memoryHandle]struct{})
		n.rooms[handle.room] = members
	}
	members[handle] = struct{}{}
}

func (n *MemoryNetwork) leave(handle *memoryHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	members := n.rooms[handle.room]
	delete(members, handle)
	if len(members) == 0 {
		delete(n.rooms, handle.room)
	}
}

// broadcast delivers data to every member of from's room except from.
func (n *MemoryNetwork) broadcast(from *memoryHandle, data []byte) {
	n.mu.Lock()
	recipients := make([]*memoryHandle, 0, len(n.rooms[from.room]))
	for member := range n.rooms[from.room] {
		if member != from {
			recipients = append(recipients, member)
		}
	}
	n.mu.Unlock()

	for _, recipient := range recipients {
		recipient.dispatch.deliverData(data, from.id)
	}
}

// MemoryStats counts the handles an adapter has produced.
type MemoryStats struct {
	Opens  int
	Closes int
	Live   int
	// MaxLive is the high-water mark of Live.
	MaxLive int
}

// MemoryAdapter is an Adapter backed by a MemoryNetwork. Open failures
// and delays can be injected; every handle it produces records what it
// sent.
type MemoryAdapter struct {
	network *MemoryNetwork
	method  Method
	logger  *slog.Logger

	mu        sync.Mutex
	openErr   error
	closeErr  error
	openDelay time.Duration
	openGate  chan struct{}
	stats     MemoryStats
	handles   []*memoryHandle
	events    []string
	observers []func(event string)
}

// NewMemoryAdapter returns an adapter reporting method. A nil network
// gives the adapter a private one.
func NewMemoryAdapter(network *MemoryNetwork, method Method, logger *slog.Logger) *MemoryAdapter {
	if network == nil {
		network = NewMemoryNetwork()
	}
	return &MemoryAdapter{network: network, method: method, logger: orDiscard(logger)}
}

func (a *MemoryAdapter) Method() Method { return a.method }

// FailOpen makes subsequent Opens fail with a ConnectError classified
// from err. A nil err clears the failure.
func (a *MemoryAdapter) FailOpen(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openErr = err
}

// FailClose makes subsequent handle Closes return err once each.
func (a *MemoryAdapter) FailClose(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeErr = err
}

// DelayOpen makes subsequent Opens wait d before resolving.
func (a *MemoryAdapter) DelayOpen(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openDelay = d
}

// HoldOpen makes subsequent Opens block until the returned release
// function is called (or their context ends).
func (a *MemoryAdapter) HoldOpen() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.openGate = gate
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			if a.openGate == gate {
				a.openGate = nil
			}
			a.mu.Unlock()
			close(gate)
		})
	}
}

// Observe registers a function called synchronously with each lifecycle
// event ("open:<method>", "close:<method>"). Several adapters sharing an
// observer yield a global ordering of opens and closes.
func (a *MemoryAdapter) Observe(observer func(event string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, observer)
}

// Stats returns the adapter's counters.
func (a *MemoryAdapter) Stats() MemoryStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Events returns the lifecycle events recorded so far.
func (a *MemoryAdapter) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

// Handles returns every handle opened so far, oldest first.
func (a *MemoryAdapter) Handles() []*MemoryHandleView {
	a.mu.Lock()
	defer a.mu.Unlock()
	views := make([]*MemoryHandleView, len(a.handles))
	for index, handle := range a.handles {
		views[index] = &MemoryHandleView{handle: handle}
	}
	return views
}

func (a *MemoryAdapter) record(event string) {
	a.mu.Lock()
	a.events = append(a.events, event)
	observers := append([]func(string){}, a.observers...)
	a.mu.Unlock()
	for _, observer := range observers {
		observer(event)
	}
}

func (a *MemoryAdapter) Open(ctx context.Context, roomID string) (Handle, error) {
	a.mu.Lock()
	openErr := a.openErr
	delay := a.openDelay
	gate := a.openGate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, NewConnectError(a.method, roomID, ctx.Err())
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, NewConnectError(a.method, roomID, ctx.Err())
		}
	}
	if openErr != nil {
		return nil, NewConnectError(a.method, roomID, openErr)
	}

	handle := &memoryHandle{
		adapter:  a,
		room:     roomID,
		dispatch: newDispatcher(a.logger),
	}
	a.network.join(handle)

	a.mu.Lock()
	a.stats.Opens++
	a.stats.Live++
	if a.stats.Live > a.stats.MaxLive {
		a.stats.MaxLive = a.stats.Live
	}
	a.handles = append(a.handles, handle)
	a.mu.Unlock()
	a.record("open:" + string(a.method))

	a.logger.Debug("memory handle opened", "room", roomID, "method", a.method, "id", handle.id)
	return handle, nil
}

type memoryHandle struct {
	adapter  *MemoryAdapter
	room     string
	id       string
	dispatch *dispatcher

	mu     sync.Mutex
	closed bool
	sent   []*schema.Frame
}

func (h *memoryHandle) send(frame *schema.Frame) error {
	data, err := encodeFrame(frame)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.sent = append(h.sent, frame)
	h.mu.Unlock()

	h.adapter.network.broadcast(h, data)
	return nil
}

func (h *memoryHandle) Send(message Message) error {
	return h.send(messageFrame(message))
}

func (h *memoryHandle) SendPresence(kind PresenceKind, username string) error {
	frame, err := presenceFrame(kind, username)
	if err != nil {
		return err
	}
	return h.send(frame)
}

func (h *memoryHandle) OnMessage(handler MessageHandler) { h.dispatch.setMessageHandler(handler) }

func (h *memoryHandle) OnPresence(handler PresenceHandler) { h.dispatch.setPresenceHandler(handler) }

func (h *memoryHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.adapter.network.leave(h)
	h.dispatch.shutdown()

	adapter := h.adapter
	adapter.mu.Lock()
	adapter.stats.Closes++
	adapter.stats.Live--
	closeErr := adapter.closeErr
	adapter.closeErr = nil
	adapter.mu.Unlock()
	adapter.record("close:" + string(adapter.method))

	return closeErr
}

// MemoryHandleView exposes a memory handle's state to tests.
type MemoryHandleView struct {
	handle *memoryHandle
}

// Room returns the room the handle was opened for.
func (v *MemoryHandleView) Room() string { return v.handle.room }

// ID returns the sender ID other handles see for this one.
func (v *MemoryHandleView) ID() string { return v.handle.id }

// Closed reports whether Close has been called.
func (v *MemoryHandleView) Closed() bool {
	v.handle.mu.Lock()
	defer v.handle.mu.Unlock()
	return v.handle.closed
}

// SentMessages returns the chat messages sent through the handle.
func (v *MemoryHandleView) SentMessages() []Message {
	v.handle.mu.Lock()
	defer v.handle.mu.Unlock()
	var messages []Message
	for _, frame := range v.handle.sent {
		if frame.Kind == schema.FrameMessage {
			messages = append(messages, Message{Text: frame.Message.Text, Sender: frame.Message.Sender, Kind: frame.Message.Kind})
		}
	}
	return messages
}

// SentPresence returns the number of presence notifications sent.
func (v *MemoryHandleView) SentPresence() int {
	v.handle.mu.Lock()
	defer v.handle.mu.Unlock()
	count := 0
	for _, frame := range v.handle.sent {
		if frame.Kind == schema.FramePresence {
			count++
		}
	}
	return count
}

// InjectMessage delivers message to the handle's own callback as if
// senderID had sent it. Delivery is dropped after Close.
func (v *MemoryHandleView) InjectMessage(message Message, senderID string) {
	data, err := codec.Marshal(messageFrame(message))
	if err != nil {
		return
	}
	v.handle.dispatch.deliverData(data, senderID)
}

// InjectPresence delivers a presence event to the handle's own callback.
func (v *MemoryHandleView) InjectPresence(kind PresenceKind, username string) {
	frame, err := presenceFrame(kind, username)
	if err != nil {
		return
	}
	v.handle.dispatch.deliver(frame, "")
}
