// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Parley packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used whenever a test waits on a callback delivered from a
// transport goroutine. [RequireNoReceive] asserts the opposite: that a
// stale or suppressed event stays undelivered for a grace period.
// [UniqueID] produces distinguishable message bodies and room names
// without reading the wall clock.
//
// Helpers call t.Fatalf on failure; setup failures are not recoverable.
package testutil
