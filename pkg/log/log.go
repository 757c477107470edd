// Copyright 2025 walteh LLC
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

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	statusWidth = 15 // Width for status text
)

// 🎯 FileOperation is the per-file outcome shown to the user
type FileOperation struct {
	Path       string // File path
	Removed    int    // Number of elements removed
	BackupPath string // Where the original was copied, empty if no backup
	Skipped    bool   // Whether the file was left alone on purpose
	SkipReason string // Why the file was skipped
	Err        error  // Failure, if any
}

func (op FileOperation) status() string {
	switch {
	case op.Err != nil:
		return "FAILED"
	case op.Skipped:
		return "SKIPPED"
	case op.Removed > 0:
		return fmt.Sprintf("REMOVED %d", op.Removed)
	default:
		return "no change"
	}
}

// 📊 Totals summarizes a run
type Totals struct {
	Processed int
	Modified  int
	Skipped   int
	Failed    int
	Removed   int
	Backups   int
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	errs    io.Writer
	mu      sync.Mutex
}

// 🏭 New creates a new logger. Failures are written to errs, everything else to console.
// Every console line is mirrored to a zerolog event on errs at debug level only, so the
// default level never prints a line twice.
func New(console, errs io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: errs}).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		errs:    errs,
		mu:      sync.Mutex{},
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.Err != nil:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.Skipped:
		symbol = '-'
		symbolColor = color.FgYellow
	case op.Removed > 0:
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	line := fmt.Sprintf("%s%s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		fmt.Sprintf("%-*s", statusWidth, op.status()))

	switch {
	case op.Err != nil:
		line += color.New(color.FgRed).Sprint(op.Err.Error())
	case op.Skipped && op.SkipReason != "":
		line += color.New(color.Faint).Sprint(op.SkipReason)
	case op.Removed > 0 && op.BackupPath != "":
		line += color.New(color.Faint).Sprint("backup " + op.BackupPath)
	}
	return line
}

// 📝 LogFileOperation logs a file outcome. Failures go to the error writer.
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.console
	if op.Err != nil {
		out = l.errs
	}
	fmt.Fprintln(out, l.formatFileOperation(op))

	l.zlog.Debug().Err(op.Err).
		Str("file", op.Path).
		Int("removed", op.Removed).
		Str("backup", op.BackupPath).
		Bool("skipped", op.Skipped).
		Msg("file processed")
}

// 📝 LogTotals prints the end-of-run summary line
func (l *Logger) LogTotals(ctx context.Context, t Totals) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sep := color.New(color.Faint).Sprint(" • ")
	failed := fmt.Sprintf("%d failed", t.Failed)
	if t.Failed > 0 {
		failed = color.New(color.FgRed).Sprint(failed)
	}

	fmt.Fprintf(l.console, "\n%s %s%s%s%s%s%s%s%s%s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprintf("%d files", t.Processed),
		sep, fmt.Sprintf("%d modified", t.Modified),
		sep, fmt.Sprintf("%d skipped", t.Skipped),
		sep, failed,
		sep, fmt.Sprintf("%d elements removed", t.Removed))

	l.zlog.Debug().
		Int("processed", t.Processed).
		Int("modified", t.Modified).
		Int("skipped", t.Skipped).
		Int("failed", t.Failed).
		Int("removed", t.Removed).
		Int("backups", t.Backups).
		Msg("run complete")
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("dcmrmel")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Debug().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Debug().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Debug().Str("kind", "warning").Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.errs, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Debug().Str("kind", "error").Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Debug().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
