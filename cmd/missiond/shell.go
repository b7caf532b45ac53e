package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tilequest/missionengine/internal/dispatcher"
	"github.com/tilequest/missionengine/internal/util"
)

// shell feeds command lines to the dispatcher. A line is a command
// followed by its arguments; double quotes group an argument with spaces.
// Blank lines and lines starting with # are skipped.
type shell struct {
	d      *dispatcher.Dispatcher
	out    io.Writer
	logger *slog.Logger
}

func newShell(d *dispatcher.Dispatcher, out io.Writer, logger *slog.Logger) *shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &shell{d: d, out: out, logger: logger}
}

// Run executes lines until EOF, "quit", or ctx is done. Command failures are
// printed and do not stop the loop.
func (s *shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading commands: %w", err)
					}
				default:
				}
				return nil
			}
			if !s.Line(line) {
				return nil
			}
		}
	}
}

// Line executes one line and prints the outcome. It returns false when the
// line asks the shell to stop.
func (s *shell) Line(line string) bool {
	fields := util.SplitFields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return true
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(s.out, strings.Join(s.d.Commands(), "\n"))
		return true
	}

	result, err := s.Exec(fields[0], fields[1:])
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return true
	}
	fmt.Fprintln(s.out, result)
	return true
}

// Exec dispatches one command and formats its result.
func (s *shell) Exec(command string, args []string) (string, error) {
	result, err := s.d.Dispatch(dispatcher.Event{Command: normalizeCommand(command), Args: args})
	if err != nil {
		return "", err
	}
	return formatResult(result)
}

// normalizeCommand accepts "mission:start", "MISSION:START" and
// ":MISSION:START:" alike.
func normalizeCommand(name string) string {
	name = strings.ToUpper(strings.Trim(name, ":"))
	return ":" + name + ":"
}

func formatResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "ok", nil
	case string:
		return r, nil
	case fmt.Stringer:
		return r.String(), nil
	case int, int64, uint64, bool:
		return fmt.Sprint(r), nil
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encoding result: %w", err)
		}
		return string(data), nil
	}
}
