// Package logging builds the zap loggers used by the CLI and the sandbox.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[91m"
	yellow = "\033[93m"
	white  = "\033[97m"
	gray   = "\033[90m"
)

// DefaultLevel keeps the CLI quiet unless something goes wrong.
const DefaultLevel = "warn"

// Options configure New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means DefaultLevel.
	Level string
	// Output defaults to os.Stderr so stdout stays clean for command output.
	Output io.Writer
	// NoColor disables ANSI colors even on a terminal.
	NoColor bool
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = DefaultLevel
	}
	switch s {
	case "debug", "info", "warn", "error":
	default:
		return zapcore.InvalidLevel, fmt.Errorf("logging: unknown level %q (want debug, info, warn or error)", s)
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InvalidLevel, fmt.Errorf("logging: %w", err)
	}
	return lvl, nil
}

// New returns a console logger. Colors are enabled only when the output is a
// terminal.
func New(opts Options) (*zap.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	colors := !opts.NoColor && IsTerminal(out)
	core := zapcore.NewCore(consoleEncoder(colors), zapcore.AddSync(out), lvl)
	return zap.New(core), nil
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func levelColor(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return gray
	case zapcore.InfoLevel:
		return white
	case zapcore.WarnLevel:
		return yellow
	default:
		return red
	}
}

func consoleEncoder(colors bool) zapcore.Encoder {
	config := zap.NewDevelopmentEncoderConfig()
	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		s := t.Format("15:04:05")
		if colors {
			s = dim + s + reset
		}
		enc.AppendString(s)
	}
	config.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		s := level.CapitalString()
		if colors {
			s = levelColor(level) + bold + s + reset
		}
		enc.AppendString(s)
	}
	config.CallerKey = zapcore.OmitKey
	return zapcore.NewConsoleEncoder(config)
}
