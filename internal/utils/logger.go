package utils

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = defaultLogger()

func defaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}

// InitLogger sends human-readable lines to stderr and, when file is set,
// JSON lines to a rotated log file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger().
		Level(parseLevel(level))
}

// SetLogLevel changes the minimum level; unknown names fall back to info.
func SetLogLevel(level string) {
	logger = logger.Level(parseLevel(level))
}

// SetLoggerForTest replaces the package logger.
func SetLoggerForTest(l zerolog.Logger) {
	logger = l
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Debug logs msg with alternating key/value pairs.
func Debug(msg string, kv ...interface{}) {
	logger.Debug().Fields(kv).Msg(msg)
}

func Info(msg string, kv ...interface{}) {
	logger.Info().Fields(kv).Msg(msg)
}

func Warn(msg string, kv ...interface{}) {
	logger.Warn().Fields(kv).Msg(msg)
}

func Error(msg string, kv ...interface{}) {
	logger.Error().Fields(kv).Msg(msg)
}

type logCtxKey struct{}

// Log is a logger with fixed fields attached.
type Log struct {
	l zerolog.Logger
}

// WithFields returns ctx carrying a logger that adds kv to every line logged
// through FromContext.
func WithFields(ctx context.Context, kv ...interface{}) context.Context {
	l := FromContext(ctx).l.With().Fields(kv).Logger()
	return context.WithValue(ctx, logCtxKey{}, Log{l: l})
}

// FromContext returns the logger stored by WithFields, or the package logger.
func FromContext(ctx context.Context) Log {
	if l, ok := ctx.Value(logCtxKey{}).(Log); ok {
		return l
	}
	return Log{l: logger}
}

func (g Log) Debug(msg string, kv ...interface{}) {
	g.l.Debug().Fields(kv).Msg(msg)
}

func (g Log) Info(msg string, kv ...interface{}) {
	g.l.Info().Fields(kv).Msg(msg)
}

func (g Log) Warn(msg string, kv ...interface{}) {
	g.l.Warn().Fields(kv).Msg(msg)
}

func (g Log) Error(msg string, kv ...interface{}) {
	g.l.Error().Fields(kv).Msg(msg)
}
