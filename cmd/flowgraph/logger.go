package main

import (
	"context"
	"io"

	flowgraph "github.com/goliatone/go-flowgraph"
	"github.com/goliatone/go-logger/glog"
)

// glogLogger adapts a go-logger logger to flowgraph.Logger.
type glogLogger struct {
	logger glog.Logger
}

func (l glogLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogLogger) WithContext(ctx context.Context) flowgraph.Logger {
	return glogLogger{logger: l.logger.WithContext(ctx)}
}

func (l glogLogger) WithFields(fields map[string]any) flowgraph.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

func newLogger(format, level string, w io.Writer) flowgraph.Logger {
	if format == "plain" {
		return &levelFilter{Logger: flowgraph.NewFmtLogger(w), min: levelRank(level)}
	}
	return glogLogger{logger: glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLevel(level),
		glog.WithLoggerTypeJSON(),
	)}
}

// levelFilter drops FmtLogger lines below the configured level.
type levelFilter struct {
	flowgraph.Logger
	min int
}

func (l *levelFilter) Trace(msg string, args ...any) { l.at(0, l.Logger.Trace, msg, args) }
func (l *levelFilter) Debug(msg string, args ...any) { l.at(1, l.Logger.Debug, msg, args) }
func (l *levelFilter) Info(msg string, args ...any)  { l.at(2, l.Logger.Info, msg, args) }
func (l *levelFilter) Warn(msg string, args ...any)  { l.at(3, l.Logger.Warn, msg, args) }
func (l *levelFilter) Error(msg string, args ...any) { l.at(4, l.Logger.Error, msg, args) }

func (l *levelFilter) WithContext(ctx context.Context) flowgraph.Logger {
	return &levelFilter{Logger: l.Logger.WithContext(ctx), min: l.min}
}

func (l *levelFilter) WithFields(fields map[string]any) flowgraph.Logger {
	return &levelFilter{Logger: flowgraph.WithLoggerFields(l.Logger, fields), min: l.min}
}

func (l *levelFilter) at(rank int, fn func(string, ...any), msg string, args []any) {
	if rank >= l.min {
		fn(msg, args...)
	}
}

func levelRank(level string) int {
	switch level {
	case "trace":
		return 0
	case "debug":
		return 1
	case "warn":
		return 3
	case "error", "fatal":
		return 4
	default:
		return 2
	}
}
