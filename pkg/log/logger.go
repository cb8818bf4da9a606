package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category selects which log stream a record is written to.
type Category int

const (
	Application Category = iota
	DiscordEvents
	Database
	Errors
)

func (c Category) String() string {
	return strings.TrimSuffix(c.fileName(), ".log")
}

func (c Category) fileName() string {
	switch c {
	case DiscordEvents:
		return "discord_events.log"
	case Database:
		return "database.log"
	case Errors:
		return "error.log"
	default:
		return "application.log"
	}
}

// Options controls where and how verbosely the loggers write.
type Options struct {
	// Dir is the directory holding the rotated log files. Empty disables file output.
	Dir string
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Console mirrors every record to stdout (stderr for the error stream).
	Console bool
	// MaxSizeMB, MaxBackups and MaxAgeDays are passed to lumberjack.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger groups the per-category slog loggers and their rotating writers.
type Logger struct {
	loggers map[Category]*slog.Logger
	closers []io.Closer
}

var (
	mu sync.RWMutex
	// GlobalLogger is nil until SetupLogger succeeds.
	GlobalLogger *Logger
	fallback     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// ParseLevel maps a textual level to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger builds the global loggers. Calling it again replaces them and
// closes the previous file writers.
func SetupLogger(opts Options) error {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 20
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 14
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", opts.Dir, err)
		}
	}

	level := ParseLevel(opts.Level)
	l := &Logger{loggers: make(map[Category]*slog.Logger, 4)}
	for _, c := range []Category{Application, DiscordEvents, Database, Errors} {
		var writers []io.Writer
		if opts.Dir != "" {
			rot := &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, c.fileName()),
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			}
			writers = append(writers, rot)
			l.closers = append(l.closers, rot)
		}
		if opts.Console || len(writers) == 0 {
			if c == Errors {
				writers = append(writers, os.Stderr)
			} else {
				writers = append(writers, os.Stdout)
			}
		}
		h := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
		l.loggers[c] = slog.New(h).With("stream", c.String())
	}

	mu.Lock()
	prev := GlobalLogger
	GlobalLogger = l
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close flushes and closes the rotating files.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Sync closes the global writers; lumberjack reopens lazily on the next write.
func Sync() error {
	mu.RLock()
	l := GlobalLogger
	mu.RUnlock()
	return l.Close()
}

func get(c Category) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if GlobalLogger == nil {
		return fallback
	}
	if l, ok := GlobalLogger.loggers[c]; ok {
		return l
	}
	return fallback
}

func ApplicationLogger() *slog.Logger { return get(Application) }
func DiscordLogger() *slog.Logger     { return get(DiscordEvents) }
func DatabaseLogger() *slog.Logger    { return get(Database) }

// ErrorLoggerRaw returns the error stream logger. Only failures that need an
// operator's attention go here.
func ErrorLoggerRaw() *slog.Logger { return get(Errors) }
