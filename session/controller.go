// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/parley/transport"
)

// State is the controller's connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Adapters are the available transports. A later adapter with the
	// same Method replaces an earlier one.
	Adapters []transport.Adapter

	// Priority orders the implicit Connect cascade. Methods without an
	// adapter are skipped. Defaults to transport.DefaultPriority.
	Priority []transport.Method

	// FallbackOnFailure makes a failed ConnectWithMethod continue with
	// the remaining priority methods.
	FallbackOnFailure bool

	Logger *slog.Logger
}

// Controller manages the single active room session.
type Controller struct {
	adapters map[transport.Method]transport.Adapter
	priority []transport.Method
	fallback bool
	logger   *slog.Logger
	router   Router

	// transition serializes Connect, ConnectWithMethod and Disconnect.
	transition sync.Mutex
	// tickets counts connect requests; the newest holds the highest.
	tickets atomic.Uint64

	// mu guards the fields below. Send takes only mu, never transition,
	// so it never waits on an in-flight Open.
	mu     sync.RWMutex
	state  State
	method transport.Method
	handle transport.Handle
	room   string
}

// NewController returns an idle controller.
func NewController(config ControllerConfig) *Controller {
	adapters := make(map[transport.Method]transport.Adapter, len(config.Adapters))
	for _, adapter := range config.Adapters {
		if adapter != nil {
			adapters[adapter.Method()] = adapter
		}
	}

	priority := config.Priority
	if len(priority) == 0 {
		priority = transport.DefaultPriority
	}
	var filtered []transport.Method
	seen := make(map[transport.Method]bool)
	for _, method := range priority {
		if _, ok := adapters[method]; ok && !seen[method] {
			filtered = append(filtered, method)
			seen[method] = true
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{
		adapters: adapters,
		priority: filtered,
		fallback: config.FallbackOnFailure,
		logger:   logger,
		method:   transport.MethodNone,
	}
}

// Priority returns the effective cascade order.
func (c *Controller) Priority() []transport.Method {
	return append([]transport.Method(nil), c.priority...)
}

// Connect tears down any current session and opens roomID through the
// fallback cascade. It returns the method that succeeded.
func (c *Controller) Connect(ctx context.Context, roomID string, handlers Handlers) (transport.Method, error) {
	ticket := c.tickets.Add(1)
	c.transition.Lock()
	defer c.transition.Unlock()

	c.disconnectLocked()
	c.setConnecting(roomID)

	handle, method, err := transport.NewSequencer(c.adaptersFor(c.priority), c.logger).Open(ctx, roomID)
	if err != nil {
		c.setIdle()
		c.logger.Error("all transports failed", "room", roomID, "error", err)
		return transport.MethodNone, err
	}
	if err := c.finish(ticket, handle, method, roomID, handlers); err != nil {
		return transport.MethodNone, err
	}
	return method, nil
}

// ConnectWithMethod tears down any current session, even one already
// using method, and opens roomID with exactly that transport. With
// FallbackOnFailure set, a failure continues through the remaining
// priority methods; CurrentMethod reports which one succeeded.
func (c *Controller) ConnectWithMethod(ctx context.Context, method transport.Method, roomID string, handlers Handlers) error {
	ticket := c.tickets.Add(1)
	c.transition.Lock()
	defer c.transition.Unlock()

	c.disconnectLocked()

	adapter, ok := c.adapters[method]
	if !ok {
		return &transport.ConnectError{
			Method: method,
			Room:   roomID,
			Reason: transport.ReasonUnknown,
			Err:    fmt.Errorf("%w: %s", ErrUnknownMethod, method),
		}
	}

	c.setConnecting(roomID)
	handle, err := adapter.Open(ctx, roomID)
	if err != nil {
		connectErr := transport.NewConnectError(method, roomID, err)
		if !c.fallback {
			c.setIdle()
			c.logger.Warn("transport failed to open", "room", roomID, "method", method,
				"reason", connectErr.Reason.String(), "error", err)
			return connectErr
		}

		var remaining []transport.Method
		for _, candidate := range c.priority {
			if candidate != method {
				remaining = append(remaining, candidate)
			}
		}
		c.logger.Warn("transport failed to open, falling back", "room", roomID, "method", method,
			"reason", connectErr.Reason.String(), "error", err)

		var fallbackErr error
		handle, method, fallbackErr = transport.NewSequencer(c.adaptersFor(remaining), c.logger).Open(ctx, roomID)
		if fallbackErr != nil {
			c.setIdle()
			failure := &transport.AllTransportsFailedError{Room: roomID, Attempts: []*transport.ConnectError{connectErr}}
			var cascade *transport.AllTransportsFailedError
			if errors.As(fallbackErr, &cascade) {
				failure.Attempts = append(failure.Attempts, cascade.Attempts...)
			}
			return failure
		}
	}

	return c.finish(ticket, handle, method, roomID, handlers)
}

// finish publishes a freshly opened handle, or closes it if a newer
// connect request is already waiting. Caller holds transition.
func (c *Controller) finish(ticket uint64, handle transport.Handle, method transport.Method, roomID string, handlers Handlers) error {
	if c.tickets.Load() != ticket {
		c.setIdle()
		c.closeHandle(handle, method, roomID)
		c.logger.Info("connect superseded", "room", roomID, "method", method)
		return ErrSuperseded
	}

	bound := c.router.Install(handlers)
	handle.OnMessage(bound.OnMessage)
	handle.OnPresence(bound.OnPresence)

	c.mu.Lock()
	c.handle = handle
	c.method = method
	c.room = roomID
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("connected", "room", roomID, "method", method)
	return nil
}

// Disconnect closes the active handle, if any, and clears the session.
// Calling it while idle does nothing.
func (c *Controller) Disconnect() {
	c.transition.Lock()
	defer c.transition.Unlock()
	c.disconnectLocked()
}

// disconnectLocked revokes the callbacks before closing the handle so
// events racing with teardown are dropped. Caller holds transition.
func (c *Controller) disconnectLocked() {
	c.mu.Lock()
	handle, method, room := c.handle, c.method, c.room
	c.handle = nil
	c.method = transport.MethodNone
	c.room = ""
	c.state = StateIdle
	c.mu.Unlock()

	if handle == nil {
		return
	}
	c.router.Revoke()
	c.closeHandle(handle, method, room)
	c.logger.Info("disconnected", "room", room, "method", method)
}

func (c *Controller) closeHandle(handle transport.Handle, method transport.Method, room string) {
	if err := handle.Close(); err != nil {
		teardown := &TeardownError{Method: method, Room: room, Err: err}
		c.logger.Warn("transport teardown failed", "room", room, "method", method, "error", teardown)
	}
}

// Send broadcasts message on the active handle.
func (c *Controller) Send(message transport.Message) error {
	c.mu.RLock()
	handle := c.handle
	c.mu.RUnlock()
	if handle == nil {
		return ErrNotConnected
	}
	return handle.Send(message)
}

// SendPresence broadcasts a presence notification on the active handle.
func (c *Controller) SendPresence(kind transport.PresenceKind, username string) error {
	c.mu.RLock()
	handle := c.handle
	c.mu.RUnlock()
	if handle == nil {
		return ErrNotConnected
	}
	return handle.SendPresence(kind, username)
}

// CurrentMethod returns the active method, or MethodNone.
func (c *Controller) CurrentMethod() transport.Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.method
}

// State returns the connection state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Room returns the room of the active or connecting session, or "".
func (c *Controller) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Controller) setConnecting(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateConnecting
	c.room = roomID
}

func (c *Controller) setIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.room = ""
	c.method = transport.MethodNone
}

func (c *Controller) adaptersFor(methods []transport.Method) []transport.Adapter {
	adapters := make([]transport.Adapter, 0, len(methods))
	for _, method := range methods {
		if adapter, ok := c.adapters[method]; ok {
			adapters = append(adapters, adapter)
		}
	}
	return adapters
}
