package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogLevel       = "CONVOY_LOG_LEVEL"
	EnvLogDevelopment = "CONVOY_LOG_DEVELOPMENT"
)

type Config struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

func DefaultConfig() Config {
	return Config{Level: "info"}
}

// New builds the process logger. Environment overrides win over cfg.
func New(cfg Config) (*zap.Logger, error) {
	ApplyEnv(&cfg)
	lvl, ok := ParseLevel(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("logging: unknown level %q", cfg.Level)
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func ApplyEnv(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvLogLevel)); raw != "" {
		cfg.Level = raw
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogDevelopment))); err == nil {
		cfg.Development = v
	}
}

func ParseLevel(raw string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zapcore.InfoLevel, true
	case "debug":
		return zapcore.DebugLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}
