// Copyright 2026 The asmfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logging used across the
// catalog client, read engine, raw device mapper and filesystem
// adapter. Every failure the adapter collapses into ENOENT for the
// kernel bridge (see spec §7) is logged here first, at Errorf, so the
// underlying cause is never silently dropped.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Severity levels, ordered least to most severe. OFF disables logging
// entirely.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// slog doesn't define a level fine enough for TRACE, so we carve one out
// below slog.LevelDebug.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return TRACE
	case l < LevelInfo:
		return DEBUG
	case l < LevelWarn:
		return INFO
	case l < LevelError:
		return WARNING
	default:
		return ERROR
	}
}

// textHandler renders `time="..." severity=LEVEL message="..."` lines,
// the format the rest of the fleet greps log files for.
type textHandler struct {
	out   io.Writer
	level *slog.LevelVar
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *textHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *textHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintf(h.out, "time=%q severity=%s message=%q\n",
		r.Time.Format("2006/01/02 15:04:05.000000"), severityName(r.Level), r.Message)
	return err
}

// jsonHandler renders {"timestamp":{"seconds":N,"nanos":N},"severity":"LEVEL","message":"..."}.
type jsonHandler struct {
	out   io.Writer
	level *slog.LevelVar
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *jsonHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *jsonHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintf(h.out, "{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q}\n",
		r.Time.Unix(), r.Time.Nanosecond(), severityName(r.Level), r.Message)
	return err
}

type loggerFactory struct {
	format string
	level  *slog.LevelVar
	writer io.Writer
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar) slog.Handler {
	if f.format == "json" {
		return &jsonHandler{out: w, level: level}
	}
	return &textHandler{out: w, level: level}
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch level {
	case TRACE:
		v.Set(LevelTrace)
	case DEBUG:
		v.Set(LevelDebug)
	case INFO:
		v.Set(LevelInfo)
	case WARNING:
		v.Set(LevelWarn)
	case ERROR:
		v.Set(LevelError)
	case OFF:
		v.Set(LevelOff)
	default:
		v.Set(LevelInfo)
	}
}

var (
	programLevel         = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{format: "text", level: programLevel, writer: os.Stderr}
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer, programLevel))
)

func init() {
	setLoggingLevel(INFO, programLevel)
}

// SetLogFormat switches the default logger between "text" and "json"
// output. Any value other than "json" is treated as text.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer, programLevel))
}

// SetLogLevel changes the minimum severity written by the default
// logger. Valid values are TRACE, DEBUG, INFO, WARNING, ERROR and OFF.
func SetLogLevel(level string) {
	setLoggingLevel(level, programLevel)
}

// stdLoggerWriter adapts one severity level of the default logger into
// an io.Writer, so it can back a legacy *log.Logger for collaborators
// (like jacobsa/fuse's MountConfig.ErrorLogger/DebugLogger) that predate
// slog.
type stdLoggerWriter struct {
	level slog.Level
}

func (w *stdLoggerWriter) Write(p []byte) (int, error) {
	defaultLogger.Log(context.Background(), w.level, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewStdLogger returns a *log.Logger that forwards every line it
// receives into the package's structured logger at level, tagged with
// prefix. This is the bridge point for collaborators that only accept
// the standard library's *log.Logger, matching gcsfuse's own
// NewLegacyLogger.
func NewStdLogger(level slog.Level, prefix string) *log.Logger {
	return log.New(&stdLoggerWriter{level: level}, prefix, 0)
}

func Tracef(format string, args ...any) { logAt(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logAt(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logAt(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logAt(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logAt(LevelError, format, args...) }

func logAt(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
