// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for physiosimd and physioqc.
//
// Logger wraps slog with two extras the daemon needs that the stdlib
// doesn't give for free: simultaneous stderr+file output, and an
// optional Sink for forwarding every entry at or above the configured
// Level to something outside the process (an alert channel, a second collector) without the
// caller having to duplicate log calls.
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  cfg.Logging.LogDir,
//	    Service: "physiosimd",
//	})
//	defer logger.Close()
//
// Logger is safe for concurrent use; mutable state is protected by a
// mutex. This package does NOT redact sensitive data — callers must
// keep node labels, pack contents, and request bodies out of log args
// if they're sensitive.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is a log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. A zero-value Config logs Info+ to stderr
// as text.
type Config struct {
	// Level is the minimum level written; messages below it are
	// discarded. Default: LevelInfo.
	Level Level

	// LogDir, if set, enables file logging alongside stderr. Files are
	// named "{Service}_{YYYY-MM-DD}.log", always JSON, created with
	// 0750 directory / 0640 file permissions. Supports "~" expansion.
	LogDir string

	// Service tags every entry's "service" attribute and names the log
	// file. Default service name when unset: "physiosimd".
	Service string

	// JSON switches stderr output to JSON; file output is always JSON
	// regardless of this setting.
	JSON bool

	// Quiet disables stderr output (file and Sink still fire).
	Quiet bool

	// Sink, if set, receives every entry at or above Level
	// asynchronously — e.g. to page on-call when a pack reload fails
	// repeatedly, without every call site needing to know about it.
	Sink Sink
}

// Sink receives log entries for delivery outside the process. Export
// must not block the caller; buffer internally and batch if needed.
// Export errors are discarded, neither logged nor propagated. Flush/Close run during
// Logger.Close, in that order.
type Sink interface {
	Export(ctx context.Context, entry Entry) error
	Flush(ctx context.Context) error
	Close() error
}

// Entry is one log record as delivered to a Sink.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// Logger wraps slog.Logger with file output and an optional Sink.
// Always call Close to flush the sink and close the log file.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	sink   Sink
	mu     sync.Mutex
}

// New builds a Logger from config. The returned Logger must be closed.
func New(config Config) *Logger {
	var handlers []slog.Handler

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	if !config.Quiet {
		var stderrHandler slog.Handler
		if config.JSON {
			stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			stderrHandler = slog.NewTextHandler(os.Stderr, opts)
		}
		handlers = append(handlers, stderrHandler)
	}

	logger := &Logger{config: config, sink: config.Sink}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			serviceName := config.Service
			if serviceName == "" {
				serviceName = "physiosimd"
			}
			filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, filename)

			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level, stderr-only, text-format logger tagged
// with service "physiosimd".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "physiosimd"})
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child Logger carrying args on every subsequent call.
// The parent is unmodified; file handle and sink are shared.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
		file:   l.file,
		sink:   l.sink,
	}
}

// Slog returns the underlying slog.Logger for callers that need
// LogAttrs or custom Record handling.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the sink, then syncs and closes the log
// file. Returns the first error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	if l.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.sink.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush sink: %w", err))
		}
		if err := l.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.sink != nil && level >= l.config.Level {
		entry := Entry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(args),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = l.sink.Export(ctx, entry) // errors are silently dropped
		}()
	}
}

// multiHandler fans a record out to every handler that accepts its
// level (used when both stderr and file logging are enabled).
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading "~" to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// argsToMap converts slog-style key/value args into Entry.Attrs,
// skipping a trailing unpaired key and any non-string key.
func argsToMap(args []any) map[string]any {
	result := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			result[key] = args[i+1]
		}
	}
	return result
}

// NopSink discards every entry. Useful as an explicit no-op default.
type NopSink struct{}

func (NopSink) Export(ctx context.Context, entry Entry) error { return nil }
func (NopSink) Flush(ctx context.Context) error               { return nil }
func (NopSink) Close() error                                  { return nil }

var _ Sink = NopSink{}

// BufferedSink collects entries in memory. Used by tests, and by
// physioqc's --debug mode to print a summary of what was logged during
// a single CLI invocation without standing up a file.
type BufferedSink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewBufferedSink() *BufferedSink {
	return &BufferedSink{entries: make([]Entry, 0, 16)}
}

func (s *BufferedSink) Export(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *BufferedSink) Flush(ctx context.Context) error { return nil }
func (s *BufferedSink) Close() error                    { return nil }

// Entries returns a copy of everything collected so far.
func (s *BufferedSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// WriterSink writes one line per entry to w — e.g. a secondary file,
// or os.Stdout for physioqc's --debug mode.
type WriterSink struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Export(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] %s: %s %v\n",
		entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message, entry.Attrs)
	return err
}

func (s *WriterSink) Flush(ctx context.Context) error { return nil }
func (s *WriterSink) Close() error                    { return nil }
