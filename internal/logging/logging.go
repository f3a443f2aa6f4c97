// Package logging provides the leveled structured logger shared by the
// image drop server, its stores and the presence channel.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Fields carries structured key/value context for a log entry.
type Fields map[string]any

// Logger writes leveled entries as JSON lines or as plain text.
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	minLevel   Level
	enableJSON bool
}

// Entry is one structured log line.
type Entry struct {
	Level   Level  `json:"level"`
	Time    string `json:"time"`
	Message string `json:"msg"`
	Fields  Fields `json:"fields,omitempty"`
	Error   string `json:"error,omitempty"`
	Caller  string `json:"caller,omitempty"`
}

var defaultLogger = New(os.Stdout, LevelInfo, false)

// New creates a Logger writing to out.
func New(out io.Writer, minLevel Level, enableJSON bool) *Logger {
	return &Logger{
		output:     out,
		minLevel:   minLevel,
		enableJSON: enableJSON,
	}
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Configure replaces the package logger. format is "json" or "text".
func Configure(out io.Writer, level, format string) {
	defaultLogger = New(out, ParseLevel(level), strings.EqualFold(format, "json"))
}

// Default returns the package logger.
func Default() *Logger {
	return defaultLogger
}

func (l *Logger) shouldLog(level Level) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// getCaller returns the file and line number of the caller
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if !l.shouldLog(level) {
		return
	}

	entry := Entry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  getCaller(3),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.enableJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	// Plain text for development. Keys are sorted so lines diff cleanly.
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(&sb, " error=%q", entry.Error)
	}
	fmt.Fprintln(l.output, sb.String())
}

func (l *Logger) Debug(msg string, fields Fields) { l.log(LevelDebug, msg, fields, nil) }

func (l *Logger) Info(msg string, fields Fields) { l.log(LevelInfo, msg, fields, nil) }

func (l *Logger) Warn(msg string, fields Fields, err error) { l.log(LevelWarn, msg, fields, err) }

func (l *Logger) Error(msg string, fields Fields, err error) { l.log(LevelError, msg, fields, err) }

// Debug logs a debug message on the package logger.
func Debug(msg string, fields Fields) { defaultLogger.log(LevelDebug, msg, fields, nil) }

// Info logs an info message on the package logger.
func Info(msg string, fields Fields) { defaultLogger.log(LevelInfo, msg, fields, nil) }

// Warn logs a warning on the package logger.
func Warn(msg string, fields Fields, err error) { defaultLogger.log(LevelWarn, msg, fields, err) }

// Error logs an error on the package logger.
func Error(msg string, fields Fields, err error) { defaultLogger.log(LevelError, msg, fields, err) }
