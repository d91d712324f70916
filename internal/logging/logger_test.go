package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetwatch/fleetwatch/internal/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "level %q", tt.input)
	}
}

func TestNew(t *testing.T) {
	assert.NotNil(t, New(slog.LevelInfo, "json"))
	assert.NotNil(t, New(slog.LevelDebug, "text"))
	assert.NotNil(t, New(slog.LevelInfo, ""))
}

func TestWithContext(t *testing.T) {
	logger := New(slog.LevelInfo, "json")

	// Without a request ID the base logger comes back.
	plain := logger.WithContext(context.Background())
	assert.NotNil(t, plain)

	// A request ID in the context yields a derived logger.
	ctx := middleware.WithRequestID(context.Background(), "req-42")
	withID := logger.WithContext(ctx)
	assert.NotNil(t, withID)
	assert.NotEqual(t, plain, withID)
}
