package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/config"
)

func TestNewHonorsConfiguredLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: "warn", want: zerolog.WarnLevel},
		{level: "ERROR", want: zerolog.ErrorLevel},
	}

	for _, tc := range tests {
		log := New(&config.Config{ServiceName: "chat-api", LogLevel: tc.level})
		if got := log.GetLevel(); got != tc.want {
			t.Errorf("level %q: got %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	for _, level := range []string{"", "nonsense"} {
		log := New(&config.Config{ServiceName: "chat-api", LogLevel: level})
		if got := log.GetLevel(); got != zerolog.InfoLevel {
			t.Errorf("level %q: got %v, want info", level, got)
		}
	}
}
