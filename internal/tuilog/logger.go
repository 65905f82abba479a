// Package tuilog provides file-based logging for histview. The terminal UI
// owns stdout and stderr, so everything that wants to log writes here.
package tuilog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "LEVEL(" + fmt.Sprint(int(l)) + ")"
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// sink is shared by a logger and every child made with With.
type sink struct {
	mu    sync.Mutex
	w     io.Writer
	file  *os.File
	level Level
}

// Logger writes leveled key=value lines. The zero value discards everything.
type Logger struct {
	out    *sink
	fields string
}

var (
	// Log is the global logger.
	Log     = &Logger{}
	logOnce sync.Once
)

// Init points the global logger at path. An empty path leaves logging off.
func Init(path string, level Level) error {
	if path == "" {
		return nil
	}

	var initErr error
	logOnce.Do(func() {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = fmt.Errorf("open log file: %w", err)
			return
		}
		Log.out = &sink{w: f, file: f, level: level}
		Log.Info("logger initialized", "path", path, "level", level)
	})
	return initErr
}

// New returns a logger writing to w. Tests use it with a bytes.Buffer.
func New(w io.Writer, level Level) *Logger {
	return &Logger{out: &sink{w: w, level: level}}
}

// With returns a child logger that appends keyvals to every line.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{out: l.out, fields: l.fields + formatPairs(keyvals)}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.out == nil {
		return nil
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.file != nil {
		return l.out.file.Close()
	}
	return nil
}

// Enabled reports whether lines at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l.out != nil && level >= l.out.level
}

// Writer returns the underlying writer for use with other logging libraries.
func (l *Logger) Writer() io.Writer {
	if l.out == nil {
		return io.Discard
	}
	return l.out.w
}

func (l *Logger) log(level Level, msg string, keyvals ...any) {
	if !l.Enabled(level) {
		return
	}
	line := time.Now().Format("15:04:05.000") + " [" + level.String() + "] " + msg + l.fields + formatPairs(keyvals)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	fmt.Fprintln(l.out.w, line)
	if l.out.file != nil {
		l.out.file.Sync()
	}
}

func formatPairs(keyvals []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(keyvals); i += 2 {
		v := fmt.Sprint(keyvals[i+1])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %v=%s", keyvals[i], v)
	}
	if len(keyvals)%2 == 1 {
		fmt.Fprintf(&b, " %v=(missing)", keyvals[len(keyvals)-1])
	}
	return b.String()
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) { l.log(LevelDebug, msg, keyvals...) }

// Info logs an info message with optional key-value pairs.
func (l *Logger) Info(msg string, keyvals ...any) { l.log(LevelInfo, msg, keyvals...) }

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) { l.log(LevelWarn, msg, keyvals...) }

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, keyvals ...any) { l.log(LevelError, msg, keyvals...) }

// Timed logs the duration of an operation at debug level. Usage:
//
//	defer tuilog.Log.Timed("transform", "chat", id)()
func (l *Logger) Timed(operation string, keyvals ...any) func() {
	if !l.Enabled(LevelDebug) {
		return func() {}
	}
	start := time.Now()
	return func() {
		l.Debug(operation, append(keyvals, "duration", time.Since(start))...)
	}
}
