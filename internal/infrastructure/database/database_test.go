package database

import (
	"testing"

	gormlogger "gorm.io/gorm/logger"
)

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect(Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestLogLevelFromString(t *testing.T) {
	tests := []struct {
		level string
		want  gormlogger.LogLevel
	}{
		{level: "debug", want: gormlogger.Info},
		{level: "trace", want: gormlogger.Info},
		{level: "info", want: gormlogger.Warn},
		{level: "warn", want: gormlogger.Warn},
		{level: "error", want: gormlogger.Error},
		{level: "FATAL", want: gormlogger.Error},
		{level: "", want: gormlogger.Warn},
		{level: "nonsense", want: gormlogger.Warn},
	}

	for _, tc := range tests {
		if got := LogLevelFromString(tc.level); got != tc.want {
			t.Errorf("LogLevelFromString(%q) = %v, want %v", tc.level, got, tc.want)
		}
	}
}
