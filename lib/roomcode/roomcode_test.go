// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomcode

import (
	"errors"
	"strconv"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"42017", true},
		{"00000", true},
		{"4201", false},
		{"420170", false},
		{"42a17", false},
		{"", false},
		{"４２０１７", false}, // fullwidth digits
	}
	for _, test := range tests {
		err := Validate(test.code)
		if test.valid && err != nil {
			t.Errorf("Validate(%q) = %v, want nil", test.code, err)
		}
		if !test.valid && !errors.Is(err, ErrInvalid) {
			t.Errorf("Validate(%q) = %v, want ErrInvalid", test.code, err)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42017", "42017"},
		{"42-017", "42017"},
		{" 4 2 0 1 7 9 9", "42017"},
		{"room 12", "12"},
		{"abc", ""},
	}
	for _, test := range tests {
		if got := Sanitize(test.input); got != test.want {
			t.Errorf("Sanitize(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	for range 1000 {
		code := Generate()
		if err := Validate(code); err != nil {
			t.Fatalf("Generate() = %q: %v", code, err)
		}
		value, _ := strconv.Atoi(code)
		if value < 10000 || value > 99999 {
			t.Fatalf("Generate() = %q, want 10000..99999", code)
		}
	}
}
