// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
)

// Sequencer opens the first adapter that succeeds, trying them strictly
// in order. Adapters are never tried concurrently, so at most one
// transport is ever live as a result of a cascade.
type Sequencer struct {
	adapters []Adapter
	logger   *slog.Logger
}

// NewSequencer returns a Sequencer over adapters in priority order.
func NewSequencer(adapters []Adapter, logger *slog.Logger) *Sequencer {
	return &Sequencer{adapters: adapters, logger: orDiscard(logger)}
}

// Open tries each adapter in turn. The first handle that opens is
// returned with its method. A failed attempt moves on to the next
// adapter; when the list is exhausted, or ctx ends between attempts,
// the result is an *AllTransportsFailedError holding every attempt made.
// Adapters skipped because ctx ended are not recorded as attempts.
func (s *Sequencer) Open(ctx context.Context, roomID string) (Handle, Method, error) {
	failure := &AllTransportsFailedError{Room: roomID}

	for _, adapter := range s.adapters {
		method := adapter.Method()
		if err := ctx.Err(); err != nil {
			failure.Stopped = err
			s.logger.Warn("transport cascade stopped",
				"room", roomID,
				"next_method", method,
				"error", err,
			)
			return nil, MethodNone, failure
		}

		handle, err := adapter.Open(ctx, roomID)
		if err == nil {
			if len(failure.Attempts) > 0 {
				s.logger.Info("transport fallback succeeded",
					"room", roomID,
					"method", method,
					"failed_attempts", len(failure.Attempts),
				)
			}
			return handle, method, nil
		}

		attempt := NewConnectError(method, roomID, err)
		failure.Attempts = append(failure.Attempts, attempt)
		s.logger.Warn("transport failed to open, trying next",
			"room", roomID,
			"method", method,
			"reason", attempt.Reason.String(),
			"error", err,
		)
	}

	return nil, MethodNone, failure
}
