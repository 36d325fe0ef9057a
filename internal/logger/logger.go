// Package logger builds the relay's zap logger and carries per-job loggers
// through request contexts.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Config selects how the relay logs. Level and Format left empty follow
// Env: production logs JSON from info up, anything else logs colored
// console lines from debug up.
type Config struct {
	Env    string
	App    string
	Level  string
	Format string // json or console
	Output string // stdout, stderr or a file path
}

func (c Config) production() bool {
	return c.Env == "production"
}

// New builds a logger from cfg. Unknown levels, formats and unwritable
// outputs are errors.
func New(cfg Config) (*zap.Logger, error) {
	level, err := cfg.level()
	if err != nil {
		return nil, err
	}
	enc, err := cfg.encoder()
	if err != nil {
		return nil, err
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}
	sink, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", output, err)
	}

	log := zap.New(zapcore.NewCore(enc, sink, level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if cfg.App != "" {
		log = log.With(zap.String("app", cfg.App))
	}
	return log, nil
}

func (c Config) level() (zapcore.Level, error) {
	if c.Level == "" {
		if c.production() {
			return zapcore.InfoLevel, nil
		}
		return zapcore.DebugLevel, nil
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return level, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

func (c Config) encoder() (zapcore.Encoder, error) {
	format := c.Format
	if format == "" {
		format = "console"
		if c.production() {
			format = "json"
		}
	}

	switch format {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "time"
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		ec.EncodeDuration = zapcore.MillisDurationEncoder
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

type contextKey int

const (
	loggerKey contextKey = iota
	jobIDKey
)

// FromContext returns the job logger stored by WithJobID, or a no-op
// logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithJobID tags the context and its logger with a print job id
func WithJobID(ctx context.Context, logger *zap.Logger, jobID string) (context.Context, *zap.Logger) {
	enriched := logger.With(zap.String("job_id", jobID))
	ctx = context.WithValue(ctx, jobIDKey, jobID)
	return context.WithValue(ctx, loggerKey, enriched), enriched
}

// JobID returns the job id stored by WithJobID
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}
