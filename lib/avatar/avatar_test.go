// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avatar

import "testing"

func TestColor(t *testing.T) {
	tests := []struct {
		username string
		want     string
	}{
		// "a" is 97, 97 mod 8 = 1.
		{"a", "#10B981"},
		// "alice" is 97+108+105+99+101 = 510, 510 mod 8 = 6.
		{"alice", "#EF4444"},
		// "bob" is 98+111+98 = 307, 307 mod 8 = 3.
		{"bob", "#EC4899"},
		{"", "#3B82F6"},
		// U+1F600 is the surrogate pair D83D DE00: 55357+56832 = 112189,
		// 112189 mod 8 = 5.
		{"\U0001F600", "#6366F1"},
	}
	for _, test := range tests {
		if got := Color(test.username); got != test.want {
			t.Errorf("Color(%q) = %q, want %q", test.username, got, test.want)
		}
	}
}

func TestColorIsStable(t *testing.T) {
	if Color("charlie") != Color("charlie") {
		t.Error("Color is not deterministic")
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		username string
		want     string
	}{
		{"alice", "A"},
		{"alice smith", "AS"},
		{"ada king lovelace", "AK"},
		{"  spaced   out  ", "SO"},
		{"élodie", "É"},
		{"", ""},
	}
	for _, test := range tests {
		if got := Initials(test.username); got != test.want {
			t.Errorf("Initials(%q) = %q, want %q", test.username, got, test.want)
		}
	}
}
