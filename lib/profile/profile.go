// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile persists the local user's chat identity between runs.
// Only the username is stored; room history is never written to disk.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	// MinUsernameLength and MaxUsernameLength bound a username in
	// runes, after trimming surrounding whitespace.
	MinUsernameLength = 3
	MaxUsernameLength = 15
)

// ErrInvalidUsername is wrapped by ValidateUsername failures.
var ErrInvalidUsername = errors.New("invalid username")

// Profile is the persisted user state.
type Profile struct {
	Username string `yaml:"username"`
}

// DefaultPath returns $XDG_CONFIG_HOME/parley/profile.yaml, falling back
// to the platform's user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, "parley", "profile.yaml"), nil
}

// Load reads the profile at path. A missing file is an empty profile.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Profile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &profile, nil
}

// Save writes profile to path, creating the directory. The file is
// replaced atomically.
func Save(path string, profile *Profile) error {
	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), ".profile-*.yaml")
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("replacing profile: %w", err)
	}
	return nil
}

// ValidateUsername trims name and checks its length, returning the
// trimmed form.
func ValidateUsername(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	length := utf8.RuneCountInString(trimmed)
	if length < MinUsernameLength || length > MaxUsernameLength {
		return "", fmt.Errorf("%w: must be %d to %d characters, got %d",
			ErrInvalidUsername, MinUsernameLength, MaxUsernameLength, length)
	}
	return trimmed, nil
}
