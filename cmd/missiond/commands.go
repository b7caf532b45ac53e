package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/geo"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

// runValidate loads definitions and region shapes and reports what it found.
func runValidate(out io.Writer) error {
	path := config.GetString("definitions.path")
	defs, err := loadDefinitions(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d missions (%d mainline, %d sideline)\n",
		path, defs.Len(), len(defs.Mainline()), len(defs.Sideline()))

	shapes := config.GetRegionConfig().ShapesFile
	if shapes == "" {
		return nil
	}
	regions, err := geo.LoadRegionsFile(shapes)
	if err != nil {
		return fmt.Errorf("loading region shapes: %w", err)
	}
	kinds := make(map[string]struct{})
	for _, r := range regions {
		kinds[r.Kind] = struct{}{}
	}
	fmt.Fprintf(out, "%s: %d regions, %d kinds\n", shapes, len(regions), len(kinds))
	return nil
}

// runDump prints the saved trees of a world and the given participants as
// one JSON document keyed like Engine.Snapshot.
func runDump(out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("dump needs a world id")
	}

	logger := slog.New(slog.DiscardHandler)
	backend, err := createStorageBackend(config.GetStorageConfig(), logger, zerolog.Nop())
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	trees, err := loadTrees(backend, args[0], args[1:])
	if cerr := backend.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing storage: %w", cerr)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(trees)
}

func loadTrees(backend storage.Backend, world string, participants []string) (map[string]core.Tree, error) {
	trees := make(map[string]core.Tree)

	tree, err := backend.LoadWorld(world)
	switch {
	case err == nil:
		trees["world"] = tree
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading world %s: %w", world, err)
	}

	for _, p := range participants {
		tree, err := backend.LoadParticipant(core.ParticipantID(p))
		switch {
		case err == nil:
			trees[p] = tree
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("loading participant %s: %w", p, err)
		}
	}

	if len(trees) == 0 {
		return nil, fmt.Errorf("nothing saved for world %s: %w", world, storage.ErrNotFound)
	}
	return trees, nil
}
