// Package logging builds the structured zap logger used by cmsl10n.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds configuration for the logger.
type Config struct {
	Environment string
	Level       string
	Service     string
}

type contextKey string

const runIDKey = contextKey("run_id")

// New creates a JSON logger writing to stderr. Development environments
// get a console encoder instead.
func New(cfg Config) *zap.Logger {
	return newLogger(cfg, zapcore.Lock(os.Stderr))
}

func newLogger(cfg Config, ws zapcore.WriteSyncer) *zap.Logger {
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
	if cfg.Service == "" {
		cfg.Service = "cmsl10n"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Environment == "development" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encoderConfig)
		opts = append(opts, zap.Development())
	} else {
		enc = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(enc, ws, ParseLevel(cfg.Level))
	return zap.New(core, opts...).With(
		zap.String("service", cfg.Service),
		zap.String("environment", cfg.Environment),
	)
}

// ParseLevel converts a level name to a zap level. Unknown names map to
// info.
func ParseLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// NewRunID returns a fresh identifier for one sync run or request.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID stores runID in ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the run id stored in ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// FromContext returns base annotated with the run id found in ctx.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := RunID(ctx); id != "" {
		return base.With(zap.String("run_id", id))
	}
	return base
}
