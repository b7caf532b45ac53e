// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tilequest/missionengine/pkg/core"
)

const exportVersion = 1

// SaveExport is the root JSON structure of the export file.
type SaveExport struct {
	Version      int                            `json:"version"`
	ExportedAt   time.Time                      `json:"exportedAt"`
	Worlds       map[string]core.Tree           `json:"worlds"`
	Participants map[string]core.Tree           `json:"participants"`
	Journal      map[string][]core.Notification `json:"journal,omitempty"`
}

// ExportFileName returns the file name used for the given compression setting.
func ExportFileName(compressed bool) string {
	if compressed {
		return "missions.json.gz"
	}
	return "missions.json"
}

// GetExportedFilePath returns the path of the last export, or "" if none.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// exportJSON writes every tree to OutputDir. Nothing is written when no
// OutputDir is configured.
func (b *Backend) exportJSON() error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	export, err := b.buildExport()
	if err != nil {
		return err
	}

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(b.cfg.CompressOutput))
	tmpPath := outputPath + ".tmp"

	if b.cfg.CompressOutput {
		err = writeGzipJSON(tmpPath, export)
	} else {
		err = writeJSON(tmpPath, export)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("failed to replace export: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() (SaveExport, error) {
	export := SaveExport{
		Version:      exportVersion,
		ExportedAt:   time.Now().UTC(),
		Worlds:       make(map[string]core.Tree, len(b.worlds)),
		Participants: make(map[string]core.Tree, len(b.participants)),
	}

	for id, data := range b.worlds {
		tree, err := decodeTree(data)
		if err != nil {
			return export, fmt.Errorf("world %q: %w", id, err)
		}
		export.Worlds[id] = tree
	}
	for id, data := range b.participants {
		tree, err := decodeTree(data)
		if err != nil {
			return export, fmt.Errorf("participant %q: %w", id, err)
		}
		export.Participants[string(id)] = tree
	}
	if len(b.journal) > 0 {
		export.Journal = b.journal
	}

	return export, nil
}

// importJSON loads the newest export in OutputDir, preferring the format
// currently configured.
func (b *Backend) importJSON() error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	for _, compressed := range []bool{b.cfg.CompressOutput, !b.cfg.CompressOutput} {
		path := filepath.Join(b.cfg.OutputDir, ExportFileName(compressed))
		export, err := readExport(path, compressed)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if export.Version > exportVersion {
			return fmt.Errorf("export %s has unsupported version %d", path, export.Version)
		}

		for id, tree := range export.Worlds {
			data, err := encodeTree(tree)
			if err != nil {
				return err
			}
			b.worlds[id] = data
		}
		for id, tree := range export.Participants {
			data, err := encodeTree(tree)
			if err != nil {
				return err
			}
			b.participants[core.ParticipantID(id)] = data
		}
		for id, entries := range export.Journal {
			b.journal[id] = append(b.journal[id], entries...)
		}
		b.lastExportPath = path
		return nil
	}

	return nil
}

func readExport(path string, compressed bool) (SaveExport, error) {
	var export SaveExport

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return export, nil
}

func writeJSON(path string, data SaveExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SaveExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
