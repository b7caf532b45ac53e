// Command missiond hosts the mission engine. It reads host commands from
// stdin or a script, one per line, and prints each result.
//
//	missiond [flags]                run the command loop
//	missiond [flags] validate       check definitions and region shapes
//	missiond [flags] dump WORLD [PARTICIPANT...]
//	missiond version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tilequest/missionengine/internal/config"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const binaryName = "missiond"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory holding "+config.FileName)
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./missionlogs", `log directory, "-" logs to stderr`)
	fs.String("definitions", "./missions", "mission definition file or directory")
	fs.String("storage", "memory", "save backend (memory, sqlite, postgres)")
	fs.String("script", "", "read commands from this file instead of stdin")
	fs.String("world", "", "load and ready this world before reading commands")
	fs.Duration("tick-interval", 0, "tick the engine on this interval (0 disables)")
	return fs
}

// flagKeys maps flags onto config keys; a flag given on the command line
// beats the config file.
var flagKeys = map[string]string{
	"log-level":     "logLevel",
	"logs-dir":      "logsDir",
	"definitions":   "definitions.path",
	"storage":       "storage.type",
	"tick-interval": "monitor.tickInterval",
}

// loadConfig reads the config file if present and binds the flags. A
// missing file leaves the defaults in place.
func loadConfig(fs *pflag.FlagSet) error {
	dir, _ := fs.GetString("config-dir")
	if err := config.Load(dir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	for flag, key := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := newFlagSet()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	sub := fs.Arg(0)
	if sub == "version" {
		fmt.Fprintf(stdout, "%s %s (built %s)\n", binaryName, Version, BuildDate)
		return 0
	}

	if err := loadConfig(fs); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	var err error
	switch sub {
	case "", "run":
		err = runHost(ctx, fs, stdin, stdout)
	case "validate":
		err = runValidate(stdout)
	case "dump":
		err = runDump(stdout, fs.Args()[1:])
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", sub)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func runHost(ctx context.Context, fs *pflag.FlagSet, stdin io.Reader, stdout io.Writer) error {
	h, err := newHost(ctx, hostOptions{Start: time.Now()})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			h.logger.Error("shutdown finished with errors", "error", cerr)
		}
	}()

	if world, _ := fs.GetString("world"); world != "" {
		if err := h.loadWorld(world); err != nil {
			return err
		}
	}

	in := stdin
	if script, _ := fs.GetString("script"); script != "" {
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		in = f
	}

	return h.shell(stdout).Run(ctx, in)
}
