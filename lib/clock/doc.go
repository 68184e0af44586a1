// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by Parley's
// timers: the mesh signaling poller, the relay board's member expiry,
// and chat log timestamps.
//
// Production code takes a [Clock] and is wired with [Real]. Tests wire
// [Fake] and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	board := relay.NewBoard(fake, 30*time.Second, logger)
//	fake.Advance(31 * time.Second) // members not re-announced expire
//
// Tickers created on a FakeClock register a waiter. [FakeClock.WaitForTickers]
// blocks until a goroutine has created its ticker, so a test can advance
// the clock without racing the goroutine's setup.
package clock
