package main

import (
	"context"
	"log/slog"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

// slogLogger backs the glog contract with log/slog for the daemon.
type slogLogger struct {
	base *slog.Logger
	ctx  context.Context
}

func newLogger(debug bool) *slogLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &slogLogger{base: slog.New(handler), ctx: context.Background()}
}

func (l *slogLogger) Trace(msg string, args ...any) { l.base.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.base.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.base.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.base.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.base.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) Fatal(msg string, args ...any) {
	l.base.ErrorContext(l.ctx, msg, args...)
	os.Exit(1)
}

func (l *slogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &slogLogger{base: l.base, ctx: ctx}
}

// GetLogger names child loggers so glog.Resolve can hand out component
// loggers.
func (l *slogLogger) GetLogger(name string) glog.Logger {
	return &slogLogger{base: l.base.With("logger", name), ctx: l.ctx}
}

var (
	_ glog.Logger         = (*slogLogger)(nil)
	_ glog.LoggerProvider = (*slogLogger)(nil)
)
