package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by the command dispatcher and
// the analytics sink. Unknown levels fall back to info.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", "dispatcher").Logger()
}

// DispatcherLogger writes dispatcher key/value logs as zerolog fields.
type DispatcherLogger struct {
	zl zerolog.Logger
}

func NewDispatcherLogger(zl zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{zl: zl}
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) { emit(l.zl.Debug(), msg, kv) }
func (l *DispatcherLogger) Info(msg string, kv ...any)  { emit(l.zl.Info(), msg, kv) }
func (l *DispatcherLogger) Error(msg string, kv ...any) { emit(l.zl.Error(), msg, kv) }

// emit is a no-op for events disabled by the logger level.
func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	ev.Fields(toFields(kv)).Msg(msg)
}

// toFields pairs up kv. Non-string keys and a trailing key without a
// value are dropped.
func toFields(kv []any) map[string]any {
	fields := make(map[string]any, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		key, ok := kv[i-1].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i]
	}
	return fields
}
