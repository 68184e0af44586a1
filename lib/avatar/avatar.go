// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package avatar derives a stable color and initials for a username, so
// every participant renders the same way on every client.
package avatar

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// Palette is the fixed set of avatar colors, as hex RGB.
var Palette = [...]string{
	"#3B82F6",
	"#10B981",
	"#8B5CF6",
	"#EC4899",
	"#F59E0B",
	"#6366F1",
	"#EF4444",
	"#14B8A6",
}

// Color returns the palette entry for username. The index is the sum of
// the name's UTF-16 code units modulo the palette size.
func Color(username string) string {
	sum := 0
	for _, unit := range utf16.Encode([]rune(username)) {
		sum += int(unit)
	}
	return Palette[sum%len(Palette)]
}

// Initials returns the uppercased first letters of the first two
// space-separated words of username.
func Initials(username string) string {
	var builder strings.Builder
	count := 0
	for _, word := range strings.Fields(username) {
		first := []rune(word)[0]
		builder.WriteRune(unicode.ToUpper(first))
		count++
		if count == 2 {
			break
		}
	}
	return builder.String()
}
