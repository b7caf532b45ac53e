// Package parser turns host command arguments into engine inputs.
// Parsing is pure: no engine calls, no storage.
package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/tilequest/missionengine/internal/util"
	"github.com/tilequest/missionengine/pkg/core"
)

// parseIntFromFloat parses a string that may be an integer ("32") or a
// whole float ("32.00"). Script hosts often have no integer type.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a whole number", s)
	}
	return int64(f), nil
}

// parseCount parses a non-negative amount. An empty string is zero, which
// events read as one.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := parseIntFromFloat(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%q is negative", s)
	}
	return int(v), nil
}

// parseDuration accepts a Go duration ("5m", "90s") or a number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		secs, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

// parseFlag reads a boolean leniently ("1", "true", "T"). Empty is false.
func parseFlag(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return cast.ToBoolE(s)
}

// Parser converts []string args into core events and command arguments.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// args cleans raw host arguments and checks there are at least minArgs of them.
// Arguments beyond maxArgs are ignored with a debug message.
func (p *Parser) args(what string, raw []string, minArgs, maxArgs int) ([]string, error) {
	data := util.CleanArgs(raw)
	if len(data) < minArgs {
		return nil, fmt.Errorf("%s: expected at least %d args, got %d", what, minArgs, len(data))
	}
	if len(data) > maxArgs {
		p.logger.Debug("ignoring extra arguments", "command", what, "got", len(data), "max", maxArgs)
		data = data[:maxArgs]
	}
	for len(data) < maxArgs {
		data = append(data, "")
	}
	return data, nil
}

func participantOf(what, s string) (core.ParticipantID, error) {
	if s == "" {
		return "", fmt.Errorf("%s: participant is empty", what)
	}
	return core.ParticipantID(s), nil
}

// EventCommand returns the host command that carries events of kind k,
// for example ":EVENT:ITEM_ACQUIRED:".
func EventCommand(k core.EventKind) string {
	return ":EVENT:" + strings.ToUpper(string(k)) + ":"
}

// KindOfCommand is the inverse of EventCommand.
func KindOfCommand(command string) (core.EventKind, bool) {
	name, ok := strings.CutPrefix(command, ":EVENT:")
	if !ok {
		return "", false
	}
	kind := core.EventKind(strings.ToLower(strings.TrimSuffix(name, ":")))
	for _, k := range core.EventKinds {
		if k == kind {
			return k, true
		}
	}
	return "", false
}
