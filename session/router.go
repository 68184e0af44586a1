// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"

	"github.com/bureau-foundation/parley/transport"
)

// Handlers receives the events of the active session. Either field may
// be nil.
type Handlers struct {
	OnMessage  transport.MessageHandler
	OnPresence transport.PresenceHandler
}

// Bound is the pair of forwarding callbacks for one generation, ready to
// register on a handle.
type Bound struct {
	Generation uint64
	OnMessage  transport.MessageHandler
	OnPresence transport.PresenceHandler
}

// Router forwards handle events to exactly one Handlers value. Each
// Install or Revoke starts a new generation; callbacks bound to an
// older generation drop their events.
type Router struct {
	mu         sync.RWMutex
	generation uint64
	handlers   Handlers
}

// Install makes handlers current and returns callbacks bound to the new
// generation.
func (r *Router) Install(handlers Handlers) Bound {
	r.mu.Lock()
	r.generation++
	generation := r.generation
	r.handlers = handlers
	r.mu.Unlock()

	return Bound{
		Generation: generation,
		OnMessage: func(message transport.Message, senderID string) {
			if handler := r.current(generation).OnMessage; handler != nil {
				handler(message, senderID)
			}
		},
		OnPresence: func(kind transport.PresenceKind, username string) {
			if handler := r.current(generation).OnPresence; handler != nil {
				handler(kind, username)
			}
		},
	}
}

// Revoke starts a new generation with no handlers.
func (r *Router) Revoke() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.handlers = Handlers{}
}

// Generation returns the current generation.
func (r *Router) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// current returns the handlers if generation is still current, or the
// zero Handlers.
func (r *Router) current(generation uint64) Handlers {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if generation != r.generation {
		return Handlers{}
	}
	return r.handlers
}
