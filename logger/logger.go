package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines is the number of lines kept in the log file after rotation
const MaxLogLines = 5000

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name; unknown names fall back to INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// File is the minimal file surface the logger needs to count, append and trim
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Close() error
}

// Logger writes levelled lines to a file and trims the file to the last
// MaxLogLines lines whenever it grows past that
type Logger struct {
	file      File
	lineCount int
	maxLines  int
	level     LogLevel
	now       func() time.Time
	mutex     sync.Mutex
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// stderrLogger is used until Init installs a file logger
var stderrLogger = &Logger{level: LogLevelInfo, now: time.Now}

// New creates a Logger over file, counting the lines it already holds
func New(file File, level LogLevel) *Logger {
	l := &Logger{
		file:     file,
		maxLines: MaxLogLines,
		level:    level,
		now:      time.Now,
	}
	l.countExistingLines()
	return l
}

// Init installs l as the process-wide logger
func Init(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return stderrLogger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.level = level
}

// Enabled reports whether a message at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return level >= l.level
}

func (l *Logger) log(level LogLevel, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	line := fmt.Sprintf("%s [%s] %s\n", l.now().Format("2006/01/02 15:04:05"), level, strings.TrimRight(msg, "\n"))
	l.Write([]byte(line))
}

func (l *Logger) Debug(format string, v ...any) { l.log(LogLevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.log(LogLevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.log(LogLevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.log(LogLevelError, format, v...) }

// Write implements io.Writer so the standard log package can be redirected here
func (l *Logger) Write(p []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.file == nil {
		return os.Stderr.Write(p)
	}

	n, err := l.file.Write(p)
	if err != nil {
		return n, err
	}

	l.lineCount += strings.Count(string(p), "\n")
	if l.lineCount > l.maxLines {
		l.rotate()
	}
	return n, nil
}

func (l *Logger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) countExistingLines() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(l.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	l.lineCount = count
	l.file.Seek(0, io.SeekEnd)
}

// rotate keeps the last maxLines lines; caller holds the mutex
func (l *Logger) rotate() {
	l.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(l.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > l.maxLines {
		lines = lines[len(lines)-l.maxLines:]
	}

	l.file.Truncate(0)
	l.file.Seek(0, io.SeekStart)
	for _, line := range lines {
		io.WriteString(l.file, line+"\n")
	}
	l.lineCount = len(lines)
}

var noop = func() {}

// Trace logs how long an operation took at TRACE level.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	l := current()
	if !l.Enabled(LogLevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		l.log(LogLevelTrace, "%s: %v", name, time.Since(start))
	}
}

// Enabled reports whether the global logger writes messages at level
func Enabled(level LogLevel) bool { return current().Enabled(level) }

func Tracef(format string, v ...any) { current().log(LogLevelTrace, format, v...) }
func Debug(format string, v ...any)  { current().Debug(format, v...) }
func Info(format string, v ...any)   { current().Info(format, v...) }
func Warn(format string, v ...any)   { current().Warn(format, v...) }
func Error(format string, v ...any)  { current().Error(format, v...) }

// Fatal logs at ERROR level and exits with status 1
func Fatal(format string, v ...any) {
	current().Error(format, v...)
	os.Exit(1)
}
