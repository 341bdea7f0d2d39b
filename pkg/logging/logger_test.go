package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, config := range []Config{DefaultConfig(), DevelopmentConfig(), {Format: "console"}} {
		logger, err := NewLogger(config)
		if err != nil {
			t.Fatalf("NewLogger(%+v) failed: %v", config, err)
		}
		logger.Debug("test")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	if _, err := NewLogger(Config{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown encoding")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ATM_LOG_LEVEL", "debug")
	t.Setenv("ATM_LOG_FORMAT", "console")
	t.Setenv("ATM_LOG_OUTPUT", "stderr,/tmp/atm.log")

	config := ConfigFromEnv()
	if config.Level != "debug" || config.Format != "console" {
		t.Errorf("Unexpected config %+v", config)
	}
	if len(config.OutputPaths) != 2 || config.OutputPaths[1] != "/tmp/atm.log" {
		t.Errorf("Unexpected output paths %v", config.OutputPaths)
	}
	if config.Service != "atm-ledger" {
		t.Errorf("Expected service atm-ledger, got %s", config.Service)
	}
}

func TestConfigFromEnv_Dev(t *testing.T) {
	t.Setenv("ATM_LOG_DEV", "true")

	config := ConfigFromEnv()
	if !config.Development || config.Level != "debug" {
		t.Errorf("Expected development config, got %+v", config)
	}
}

func TestLogger_ForAccount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap.New(core)}

	logger.Named("ledger").ForAccount("12345").Info("deposit")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "ledger" {
		t.Errorf("Expected logger name ledger, got %s", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["account"] != "12345" {
		t.Errorf("Expected account field, got %v", entries[0].ContextMap())
	}
}

func TestGlobal(t *testing.T) {
	previous := L()
	defer SetGlobal(previous)

	core, logs := observer.New(zapcore.InfoLevel)
	SetGlobal(&Logger{zap.New(core)})
	L().Info("hello")

	if logs.Len() != 1 {
		t.Errorf("Expected global logger to be replaced, got %d entries", logs.Len())
	}
}

func TestLogger_ForSession(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap.New(core)}

	logger.ForAccount("12345").ForSession("abc").Info("authenticated")

	fields := logs.All()[0].ContextMap()
	if fields["account"] != "12345" || fields["session"] != "abc" {
		t.Errorf("Expected account and session fields, got %v", fields)
	}
}
