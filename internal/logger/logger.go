// Copyright 2023 Google Inc. All Rights Reserved.
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

// Package logger is the leveled logger every fatal invariant violation and
// teardown/reclaim diagnostic in the vnode core logs through, instead of the
// standard library's log package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jacobsa/vnode/cfg"
	"github.com/jacobsa/vnode/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// timeFormat renders exactly 26 characters: digits, '/', ':', '.' and spaces.
const timeFormat = "2006/01/02 15:04:05.000000"

// Custom severities. TRACE sits below slog's Debug and OFF sits above Error,
// so setting the program level to LevelOff suppresses every call below.
const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelOff   slog.Level = 1 << 20
)

type loggerFactory struct {
	file            *os.File
	sysWriter       io.Writer
	format          string
	level           string
	logRotateConfig config.LogRotateConfig
}

var defaultLoggerFactory = &loggerFactory{
	format:          "text",
	level:           config.INFO,
	logRotateConfig: config.DefaultLogRotateConfig(),
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stdout, programLevelFor(config.INFO), ""))

func programLevelFor(level string) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(level, v)
	return v
}

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func textReplaceAttr(prefix string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			return slog.String(slog.TimeKey, a.Value.Time().Format(timeFormat))
		case slog.LevelKey:
			return slog.String("severity", severityName(a.Value.Any().(slog.Level)))
		case slog.MessageKey:
			return slog.String("message", prefix+a.Value.String())
		}
		return a
	}
}

func jsonReplaceAttr(prefix string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			t := a.Value.Time()
			return slog.Attr{
				Key: "timestamp",
				Value: slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				),
			}
		case slog.LevelKey:
			return slog.String("severity", severityName(a.Value.Any().(slog.Level)))
		case slog.MessageKey:
			return slog.String("message", prefix+a.Value.String())
		}
		return a
	}
}

// createJsonOrTextHandler builds a slog.Handler writing to w at the
// configured format, with every log line prefixed by prefix.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	if f.format == "text" {
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:       programLevel,
			ReplaceAttr: textReplaceAttr(prefix),
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       programLevel,
		ReplaceAttr: jsonReplaceAttr(prefix),
	})
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stdout
}

// setLoggingLevel maps a cfg/config severity string onto programLevel.
func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	case config.TRACE:
		programLevel.Set(LevelTrace)
	case config.DEBUG:
		programLevel.Set(LevelDebug)
	case config.INFO:
		programLevel.Set(LevelInfo)
	case config.WARNING:
		programLevel.Set(LevelWarn)
	case config.ERROR:
		programLevel.Set(LevelError)
	case config.OFF:
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(LevelInfo)
	}
}

// SetLogFormat switches the default logger's format. "text" selects the
// text handler; any other value, including the empty string, selects json.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(
		defaultLoggerFactory.writer(), programLevelFor(defaultLoggerFactory.level), ""))
}

// InitLogFile points the default logger at a rotating log file.
// legacyLogConfig supplies the rotation policy (max size, backup count,
// compression); newLogConfig supplies the path, severity, and format. Both
// shapes are accepted while callers migrate to the cfg package.
func InitLogFile(legacyLogConfig config.LogConfig, newLogConfig cfg.LoggingConfig) error {
	path := string(newLogConfig.FilePath)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file %q: %w", path, err)
	}

	defaultLoggerFactory = &loggerFactory{
		file:      f,
		sysWriter: nil,
		format:    newLogConfig.Format,
		level:     string(newLogConfig.Severity),
		logRotateConfig: config.LogRotateConfig{
			MaxFileSizeMB:   legacyLogConfig.LogRotateConfig.MaxFileSizeMB,
			BackupFileCount: legacyLogConfig.LogRotateConfig.BackupFileCount,
			Compress:        legacyLogConfig.LogRotateConfig.Compress,
		},
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    legacyLogConfig.LogRotateConfig.MaxFileSizeMB,
		MaxBackups: legacyLogConfig.LogRotateConfig.BackupFileCount,
		Compress:   legacyLogConfig.LogRotateConfig.Compress,
	}

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(
		rotator, programLevelFor(defaultLoggerFactory.level), ""))

	return nil
}

// Init configures the default logger from a fully-resolved cfg.LoggingConfig,
// the path cmd/root.go takes at boot.
func Init(lc cfg.LoggingConfig) error {
	if lc.FilePath != "" {
		return InitLogFile(config.LogConfig{
			LogRotateConfig: config.LogRotateConfig{
				MaxFileSizeMB:   lc.LogRotate.MaxFileSizeMb,
				BackupFileCount: lc.LogRotate.BackupFileCount,
				Compress:        lc.LogRotate.Compress,
			},
		}, lc)
	}

	SetLogFormat(lc.Format)
	defaultLoggerFactory.level = string(lc.Severity)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(
		defaultLoggerFactory.writer(), programLevelFor(defaultLoggerFactory.level), ""))
	return nil
}

func Tracef(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelDebug, fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelInfo, fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelWarn, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelError, fmt.Sprintf(format, v...))
}

// Fatalf logs at ERROR severity and then terminates the process. The vnode
// subsystem calls this for invariant violations when DebugConfig.ExitOnInvariantViolation
// is set; otherwise it panics instead (see vnode.Subsystem.fatal).
func Fatalf(format string, v ...any) {
	Errorf(format, v...)
	os.Exit(1)
}
