package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelTrace is the most verbose level, used for per-file decisions
	LevelTrace LogLevel = iota - 1
	// LevelDebug is the debug log level
	LevelDebug
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// Options controls how a logger is built.
type Options struct {
	// Level is a level name ("trace", "debug", "info", "warn", "error").
	// Empty means resolve from the environment.
	Level string
	// Verbosity is the number of -v flags; it lowers the level when set.
	Verbosity int
	// Console forces human-readable output. When nil, console output is
	// used only if the writer is a terminal.
	Console *bool
}

// ParseLevel converts a level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LevelFromEnv resolves the level from DEBUG and LOG_LEVEL.
func LevelFromEnv() LogLevel {
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// Resolve picks the effective level: an explicit name wins over the
// environment, and each -v lowers the result by one step.
func (o Options) Resolve() LogLevel {
	level := LevelFromEnv()
	if o.Level != "" {
		level = ParseLevel(o.Level)
	}
	if o.Verbosity > 0 {
		switch {
		case o.Verbosity >= 2:
			level = LevelTrace
		case level > LevelDebug:
			level = LevelDebug
		}
	}
	return level
}

// New builds a zerolog logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	console := isTerminal(w)
	if opts.Console != nil {
		console = *opts.Console
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(w).
		Level(opts.Resolve().Zerolog()).
		With().
		Timestamp().
		Logger()
}

// Nop returns a disabled logger, for tests and library callers that do not
// care about output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Component derives a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Zerolog maps the level onto zerolog's level type.
func (l LogLevel) Zerolog() zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}
