// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomcode handles the five-digit codes that name chat rooms.
// A code is the whole room identity: anyone who knows it can join.
package roomcode

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Length is the number of digits in a room code.
const Length = 5

// ErrInvalid is returned by Validate for anything but five ASCII digits.
var ErrInvalid = errors.New("room code must be exactly 5 digits")

// Validate reports whether code is exactly five ASCII digits.
func Validate(code string) error {
	if len(code) != Length {
		return fmt.Errorf("%w: got %q", ErrInvalid, code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return fmt.Errorf("%w: got %q", ErrInvalid, code)
		}
	}
	return nil
}

// Sanitize strips everything but ASCII digits from input and truncates
// the result to five digits, for cleaning typed or pasted codes.
func Sanitize(input string) string {
	var builder strings.Builder
	for i := 0; i < len(input) && builder.Len() < Length; i++ {
		if input[i] >= '0' && input[i] <= '9' {
			builder.WriteByte(input[i])
		}
	}
	return builder.String()
}

// Generate returns a random code in 10000..99999, so generated codes
// never start with zero.
func Generate() string {
	return fmt.Sprintf("%d", 10000+rand.IntN(90000))
}
