package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// ParseLevel maps a level name to a Level. Unknown names yield LevelInfo and false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Logger writes printf-style leveled lines to a writer.
// A component logger created with WithPrefix shares the console
// settings of the package default and also mirrors into the session file.
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
	prefix   string
	shared   bool
}

var defaultLogger = New(os.Stderr, LevelInfo, "")

// session file state
var (
	fileMu      sync.Mutex
	fileLogger  *Logger
	logFile     *os.File
	logDir      string
	fileEnabled bool
	fileInit    bool
)

// EnableFileLog mirrors every log line, at any level, into
// <dir>/session_<timestamp>.log. The file is opened on first use.
func EnableFileLog(dir string) {
	fileMu.Lock()
	defer fileMu.Unlock()
	logDir = dir
	fileEnabled = true
	fileInit = false
}

func openSessionFile() {
	if !fileEnabled {
		return
	}
	dir := logDir
	if !filepath.IsAbs(dir) {
		cwd, _ := os.Getwd()
		dir = filepath.Join(cwd, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}

	now := time.Now()
	logPath := filepath.Join(dir, fmt.Sprintf("session_%s.log", now.Format("2006-01-02_15-04-05")))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	logFile = f
	fileLogger = New(f, LevelDebug, "")

	_, _ = fmt.Fprintf(f, "=== Session started at %s ===\n", now.Format("2006-01-02 15:04:05"))

	latest := filepath.Join(dir, "latest.log")
	_ = os.Remove(latest)
	_ = os.Symlink(filepath.Base(logPath), latest)
}

func sessionFile() *Logger {
	fileMu.Lock()
	defer fileMu.Unlock()
	if !fileInit {
		fileInit = true
		openSessionFile()
	}
	return fileLogger
}

// CloseLogFile closes the session log (call on shutdown)
func CloseLogFile() {
	fileMu.Lock()
	defer fileMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
		fileLogger = nil
	}
}

// New creates a new logger
func New(output io.Writer, minLevel Level, prefix string) *Logger {
	return &Logger{
		output:   output,
		minLevel: minLevel,
		prefix:   prefix,
	}
}

// SetOutput sets the console destination. The TUI points this at io.Discard
// so log lines never tear the alternate screen.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.output = w
}

// SetLevel sets the minimum console level
func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.minLevel = level
}

// SetLevelFromString sets level from string (debug, info, warn, error)
func SetLevelFromString(level string) {
	if l, ok := ParseLevel(level); ok {
		SetLevel(l)
	}
}

// WithPrefix returns a component logger, e.g. WithPrefix("gemini").
func WithPrefix(prefix string) *Logger {
	return &Logger{prefix: prefix, shared: true}
}

func (l *Logger) target() (io.Writer, Level) {
	if !l.shared {
		return l.output, l.minLevel
	}
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.output, defaultLogger.minLevel
}

func (l *Logger) write(w io.Writer, level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := ""
	if l.prefix != "" {
		prefix = "[" + l.prefix + "] "
	}
	_, _ = fmt.Fprintf(w, "%s %s %s%s\n", time.Now().Format("15:04:05"), level.String(), prefix, msg)
}

func (l *Logger) log(level Level, format string, args ...any) {
	out, minLevel := l.target()
	msg := fmt.Sprintf(format, args...)
	if level >= minLevel && out != nil {
		l.write(out, level, msg)
	}
	if l.shared {
		if fl := sessionFile(); fl != nil {
			l.write(fl.output, level, msg)
		}
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

var root = &Logger{shared: true}

// Debug logs through the default logger and the session file
func Debug(format string, args ...any) { root.Debug(format, args...) }

// Info logs through the default logger and the session file
func Info(format string, args ...any) { root.Info(format, args...) }

// Warn logs through the default logger and the session file
func Warn(format string, args ...any) { root.Warn(format, args...) }

// Error logs through the default logger and the session file
func Error(format string, args ...any) { root.Error(format, args...) }

// Enabled returns true if the given level would reach the console
func Enabled(level Level) bool {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return level >= defaultLogger.minLevel
}

// DebugEnabled returns true if debug logging is enabled
func DebugEnabled() bool {
	return Enabled(LevelDebug)
}
