// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockAdvanceMovesNow(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(90 * time.Second)
	if got, want := clock.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeClockAfter(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(time.Second)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}

	clock.Advance(time.Second)
	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(time.Second)) {
			t.Errorf("fired at %v, want %v", fired, epoch.Add(time.Second))
		}
	default:
		t.Fatal("After did not fire once the deadline passed")
	}
}

func TestFakeClockAfterNonPositive(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
}

func TestFakeClockTickerRepeats(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for round := 1; round <= 3; round++ {
		clock.Advance(2 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("round %d: ticker did not fire", round)
		}
	}
}

func TestFakeClockTickerStop(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()

	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeClockWaitForTickers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		clock.WaitForTickers(1)
	}()

	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("WaitForTickers did not return after a ticker was created")
	}
}
