package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/internal/dispatcher"
	"github.com/tilequest/missionengine/internal/engine"
	"github.com/tilequest/missionengine/pkg/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestShell(t *testing.T) (*shell, *bytes.Buffer, *[][]string) {
	t.Helper()
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	var seen [][]string
	d.Register(":ECHO:", func(e dispatcher.Event) (any, error) {
		seen = append(seen, e.Args)
		return strings.Join(e.Args, "|"), nil
	})
	d.Register(":FAIL:", func(e dispatcher.Event) (any, error) {
		return nil, errors.New("mission 4 is locked")
	})

	var out bytes.Buffer
	return newShell(d, &out, nil), &out, &seen
}

func TestNormalizeCommand(t *testing.T) {
	for _, in := range []string{"mission:start", "MISSION:START", ":MISSION:START:", ":mission:start"} {
		assert.Equal(t, ":MISSION:START:", normalizeCommand(in), in)
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "ok"},
		{"string", "queued", "queued"},
		{"int", 3, "3"},
		{"stringer", core.ProgressActive, core.ProgressActive.String()},
		{"struct", engine.TickReport{Tick: 4, Unlocked: []int{2}}, `{"Tick":4,"Unlocked":[2],"Waiting":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatResult(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShell_Run(t *testing.T) {
	s, out, seen := newTestShell(t)

	script := "echo a \"b c\"\n\n# comment\nfail\nECHO:\nexit\necho never\n"
	require.NoError(t, s.Run(context.Background(), strings.NewReader(script)))

	assert.Equal(t, [][]string{{"a", "b c"}, {}}, *seen)
	assert.Equal(t, "a|b c\nerror: mission 4 is locked\n\n", out.String())
}

func TestShell_Help(t *testing.T) {
	s, out, _ := newTestShell(t)
	assert.True(t, s.Line("help"))
	assert.Equal(t, ":ECHO:\n:FAIL:\n", out.String())
}

func TestShell_StopsOnCancel(t *testing.T) {
	s, _, _ := newTestShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()
	assert.NoError(t, s.Run(ctx, r))
}
