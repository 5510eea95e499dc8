package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FieldService names the process in every entry.
const FieldService = "service"

// Option adjusts the logger configuration before it is built.
type Option func(*zap.Config)

// WithOutput replaces stdout as the log sink, e.g. "stderr" while stdout
// belongs to an interactive prompt.
func WithOutput(paths ...string) Option {
	return func(cfg *zap.Config) {
		if len(paths) > 0 {
			cfg.OutputPaths = paths
		}
	}
}

// WithService stamps every entry with the service name.
func WithService(name string) Option {
	return func(cfg *zap.Config) {
		if name == "" {
			return
		}
		if cfg.InitialFields == nil {
			cfg.InitialFields = map[string]any{}
		}
		cfg.InitialFields[FieldService] = name
	}
}

func New(json bool, debug bool, opts ...Option) (*zap.Logger, error) {
	cfg := config(json, debug)
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.Build()
}

func config(json bool, debug bool) zap.Config {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoding := "console"
	if json {
		encoding = "json"
	}

	return zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			NameKey: "logger",

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
}

// TruncateForLog trims s and cuts it to limit runes with an ellipsis.
// A non-positive limit hides the value entirely.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
