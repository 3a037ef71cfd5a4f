package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level defines log levels.
type Level int8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	TraceLevel Level = -1
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

func (l Level) String() string { return l.zerolog().String() }

var pid = os.Getpid()

type Logger struct {
	logger *zerolog.Logger
}

// New makes a JSON logger writing into w.
func New(w io.Writer, isDebug bool) *Logger {
	SetDebug(isDebug)
	logger := zerolog.New(w).With().Timestamp().Int("pid", pid).Logger()
	return &Logger{logger: &logger}
}

// NewConsole makes a human-readable logger for the terminal.
// The tag goes into the s column, module names set with Module go into m.
func NewConsole(isDebug bool, tag string, noColor bool) *Logger {
	SetDebug(isDebug)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.0000", NoColor: noColor,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			"pid",
			zerolog.LevelFieldName,
			"s",
			"m",
			zerolog.MessageFieldName,
		},
		FieldsExclude: []string{"s", "m", "pid"},
	}
	if output.NoColor {
		output.FormatMessage = func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%v", i)
		}
	}
	logger := zerolog.New(output).With().
		Str("pid", fmt.Sprintf("%4x", pid)).
		Str("s", tag).
		Str("m", "").
		Timestamp().Logger()
	return &Logger{logger: &logger}
}

// Default wraps the global zerolog logger.
func Default() *Logger { return &Logger{logger: &log.Logger} }

// Nop discards everything, handy in tests.
func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{logger: &logger}
}

// SetDebug switches the global level between debug and info.
func SetDebug(isDebug bool) {
	level := InfoLevel
	if isDebug {
		level = DebugLevel
	}
	SetLevel(level)
}

func SetLevel(level Level) { zerolog.SetGlobalLevel(level.zerolog()) }

// GlobalLevel returns the minimum level enabled for all loggers.
func GlobalLevel() Level {
	switch zerolog.GlobalLevel() {
	case zerolog.TraceLevel:
		return TraceLevel
	case zerolog.DebugLevel:
		return DebugLevel
	case zerolog.WarnLevel:
		return WarnLevel
	case zerolog.ErrorLevel:
		return ErrorLevel
	}
	return InfoLevel
}

// With creates a child logger with the field added to its context.
func (l *Logger) With() zerolog.Context { return l.logger.With() }

// Extend adds some additional context to the existing logger.
func (l *Logger) Extend(ctx zerolog.Context) *Logger {
	logger := ctx.Logger()
	return &Logger{logger: &logger}
}

// Module returns a child logger tagged with a module name.
func (l *Logger) Module(name string) *Logger { return l.Extend(l.With().Str("m", name)) }

// Debug starts a new message with debug level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }

// Info starts a new message with info level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Info() *zerolog.Event { return l.logger.Info() }

// Warn starts a new message with warn level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Warn() *zerolog.Event { return l.logger.Warn() }

// Error starts a new message with error level.
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }

// Fatal starts a new message with fatal level. The os.Exit(1) function
// is called by the Msg method.
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// Printf sends a log event using debug level and no extra field.
func (l *Logger) Printf(format string, v ...any) { l.logger.Printf(format, v...) }
