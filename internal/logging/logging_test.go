package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{" warn ", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, false)

	l.Debug("dropped", nil)
	l.Info("dropped", nil)
	if buf.Len() != 0 {
		t.Fatalf("Expected nothing below warn, got %q", buf.String())
	}

	l.Warn("kept", nil, nil)
	if !strings.Contains(buf.String(), "[warn]") {
		t.Errorf("Expected warn line, got %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, true)

	l.Error("store_write_failed", Fields{"id": "abc"}, errors.New("disk full"))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry.Level != LevelError || entry.Message != "store_write_failed" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.Error != "disk full" {
		t.Errorf("Expected error field, got %q", entry.Error)
	}
	if entry.Fields["id"] != "abc" {
		t.Errorf("Expected id field, got %v", entry.Fields["id"])
	}
	if !strings.HasPrefix(entry.Caller, "logging_test.go:") {
		t.Errorf("Expected caller in this file, got %q", entry.Caller)
	}
}

func TestLogger_TextSortsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, false)

	l.Info("upload", Fields{"files": 2, "bytes": 10})

	line := buf.String()
	if strings.Index(line, "bytes=10") > strings.Index(line, "files=2") {
		t.Errorf("Expected sorted fields, got %q", line)
	}
}
