// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"alice", "alice", true},
		{"  bob  ", "bob", true},
		{"abc", "abc", true},
		{"fifteen-chars-x", "fifteen-chars-x", true},
		{"sixteen-chars-xy", "", false},
		{"ab", "", false},
		{"   ab   ", "", false},
		{"", "", false},
		{"日本語", "日本語", true},
	}
	for _, test := range tests {
		got, err := ValidateUsername(test.input)
		if test.valid {
			if err != nil || got != test.want {
				t.Errorf("ValidateUsername(%q) = %q, %v, want %q", test.input, got, err, test.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("ValidateUsername(%q) error = %v, want ErrInvalidUsername", test.input, err)
		}
	}
}

func TestLoadMissingIsEmpty(t *testing.T) {
	profile, err := Load(filepath.Join(t.TempDir(), "profile.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if profile.Username != "" {
		t.Errorf("Username = %q, want empty", profile.Username)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley", "profile.yaml")
	if err := Save(path, &Profile{Username: "alice"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(path, &Profile{Username: "alice2"}); err != nil {
		t.Fatalf("Save over existing: %v", err)
	}

	profile, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if profile.Username != "alice2" {
		t.Errorf("Username = %q, want %q", profile.Username, "alice2")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only profile.yaml", len(entries))
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	os.WriteFile(path, []byte("username: [unclosed"), 0o600)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}

func TestDefaultPathUsesXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("os.UserConfigDir ignores XDG_CONFIG_HOME on " + runtime.GOOS)
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath: %v", err)
	}
	if want := filepath.Join(dir, "parley", "profile.yaml"); path != want {
		t.Errorf("DefaultPath = %q, want %q", path, want)
	}
}
