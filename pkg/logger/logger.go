package logx

import (
	"context"
	"os"

	"github.com/jewelry-concierge/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment default when set (e.g. "warn").
	Level string
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

func Init(otps ...LoggerOpts) {
	opts := safe(otps...)
	if opts.Environment.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	}

	level := opts.Level
	if level == "" {
		level = opts.Environment.DefaultLogLevel()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(lvl)
}

// WithContext stores a child logger carrying the given fields on ctx.
func WithContext(ctx context.Context, fields map[string]any) context.Context {
	l := FromContext(ctx).With().Fields(fields).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger stored on ctx, or the global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &log.Logger
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
