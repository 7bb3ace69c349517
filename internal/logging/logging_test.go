package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatal("ParseLevel accepted an unknown level")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogDevelopment, "true")
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	if cfg.Level != "debug" || !cfg.Development {
		t.Fatalf("ApplyEnv = %+v", cfg)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Fatal("New accepted an unknown level")
	}
}
