// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.name)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", test.name, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestNewAutoUsesJSONWhenPiped(t *testing.T) {
	var buffer bytes.Buffer
	logger, closer, err := New(Options{Output: &buffer})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer()

	logger.Info("room joined", "room", "42017")
	logger.Debug("hidden at info")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output %q is not one JSON record: %v", buffer.String(), err)
	}
	if record["msg"] != "room joined" || record["room"] != "42017" {
		t.Errorf("record = %v, want msg and room", record)
	}
}

func TestNewTextFormatAndLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger, closer, err := New(Options{Output: &buffer, Format: "text", Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer()

	logger.Debug("polling board")
	if got := buffer.String(); !strings.Contains(got, "level=DEBUG") || !strings.Contains(got, `msg="polling board"`) {
		t.Errorf("output = %q, want a text DEBUG record", got)
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "parley.log")
	logger, closer, err := New(Options{File: path, Discard: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("transport failed", "method", "mesh")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"method":"mesh"`) {
		t.Errorf("log file = %q, want a JSON record with the method", data)
	}
}

func TestNewDiscard(t *testing.T) {
	var buffer bytes.Buffer
	logger, _, err := New(Options{Output: &buffer, Discard: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Error("dropped")
	if buffer.Len() != 0 {
		t.Errorf("output = %q, want nothing", buffer.String())
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New accepted an unknown level")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("New accepted an unknown format")
	}
}
