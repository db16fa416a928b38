package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerHonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := NewLogger().GetLevel(); got != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %v", got)
	}

	t.Setenv("LOG_LEVEL", "warn")
	if got := NewLogger().GetLevel(); got != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %v", got)
	}
}

func TestNewLoggerWithService(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	logger := NewLoggerWithService("media-server")
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", logger.Formatter)
	}
}
