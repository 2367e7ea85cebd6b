package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud", Format: "json"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(Options{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestNewFromNilConfig(t *testing.T) {
	if _, err := NewFromConfig(nil); err != nil {
		t.Fatalf("NewFromConfig(nil): %v", err)
	}
}
