package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.log")
	log, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Debug("escrow transitioned")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"escrow transitioned"`) {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if log.Core().Enabled(-1) {
		t.Error("debug should be disabled by default")
	}
}
