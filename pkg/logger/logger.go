// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Logger prefixes every line with the component name.
type Logger struct {
	prefix string
}

var (
	baseMu     sync.RWMutex
	baseLogger = log.New(os.Stdout, "", log.LstdFlags)
	logFile    *os.File

	debugEnabled bool
	debugMu      sync.RWMutex
)

// Init sends log output to stdout and to the file at logPath. The parent
// directory is created if needed. Calling Init again swaps the file.
// Debug output is enabled when the DEBUG env var is set.
func Init(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	baseMu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	baseLogger = newBaseLogger(io.MultiWriter(os.Stdout, f))
	baseMu.Unlock()

	if os.Getenv("DEBUG") != "" {
		EnableDebug(true)
	}
	return nil
}

// SetOutput replaces the base writer, detaching any log file. Used by the
// CLI for quiet commands and by tests.
func SetOutput(w io.Writer) {
	baseMu.Lock()
	defer baseMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	baseLogger = newBaseLogger(w)
}

// Close cleans up the log file (call on shutdown)
func Close() {
	baseMu.Lock()
	defer baseMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	baseLogger = newBaseLogger(os.Stdout)
}

// EnableDebug dynamically turns debug logging on/off
func EnableDebug(on bool) {
	debugMu.Lock()
	debugEnabled = on
	debugMu.Unlock()
}

// IsDebug returns current debug state
func IsDebug() bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugEnabled
}

func New(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

func (l *Logger) output(level, msg string) {
	baseMu.RLock()
	base := baseLogger
	baseMu.RUnlock()
	base.Printf("[%s] %s: %s", l.prefix, level, msg)
}

func (l *Logger) withCaller(level, msg string) {
	_, file, line, ok := runtime.Caller(2)
	if ok {
		msg = fmt.Sprintf("(%s:%d) %s", filepath.Base(file), line, msg)
	}
	l.output(level, msg)
}

func (l *Logger) Info(fmtstr string, v ...any) {
	l.output("INFO", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Warn(fmtstr string, v ...any) {
	l.output("WARN", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Error(fmtstr string, v ...any) {
	l.withCaller("ERROR", fmt.Sprintf(fmtstr, v...))
}

// Fatal logs and panics; service.Start turns the panic into an exit code.
func (l *Logger) Fatal(fmtstr string, v ...any) {
	formatted := fmt.Sprintf(fmtstr, v...)
	l.withCaller("FATAL", formatted)
	panic(formatted)
}

func (l *Logger) Debug(fmtstr string, v ...any) {
	if !IsDebug() {
		return
	}
	l.output("DEBUG", fmt.Sprintf(fmtstr, v...))
}

func newBaseLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.LstdFlags)
}
