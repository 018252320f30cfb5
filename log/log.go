// Package log provides the structured logger every respipe component
// accepts as an optional dependency, built the way packetd's logger wraps
// zap: a console or rotating-file core behind a small sugared facade.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger. The zero value logs at info level to
// stdout.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Empty means info.
	Level string

	// Stdout writes to standard output when true (the default when
	// Filename is empty).
	Stdout bool

	// Filename, when set, rotates logs into this file via lumberjack
	// instead of (or alongside) stdout.
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// Logger wraps a sugared zap logger. The zero value is valid and discards
// everything, so components can hold a *Logger field and call methods on
// it unconditionally.
type Logger struct {
	sugared *zap.SugaredLogger
}

// New builds a Logger from Options.
func New(opt Options) *Logger {
	level := zapcore.InfoLevel
	switch opt.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if opt.Filename != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    orDefault(opt.MaxSizeMB, 100),
			MaxAge:     orDefault(opt.MaxAgeDays, 28),
			MaxBackups: orDefault(opt.MaxBackups, 3),
		})
		if opt.Stdout {
			sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(os.Stdout))
		}
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return &Logger{sugared: zap.New(core).Sugar()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.sugared == nil {
		return
	}
	l.sugared.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil || l.sugared == nil {
		return
	}
	l.sugared.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil || l.sugared == nil {
		return
	}
	l.sugared.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.sugared == nil {
		return
	}
	l.sugared.Errorf(format, args...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.sugared == nil {
		return nil
	}
	return l.sugared.Sync()
}
