package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ivlev/scene2video/internal/config"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a composition.
type File struct {
	Version  string   `yaml:"version"`
	World    World    `yaml:"world"`
	Entities []Entity `yaml:"entities"`
}

// Request snapshots the file into a render request. The entity slice is
// copied so later edits to f do not leak into the request.
func (f *File) Request(export config.ExportSettings, mode Mode, duration float64) Request {
	entities := make([]Entity, len(f.Entities))
	copy(entities, f.Entities)
	return Request{
		Entities: entities,
		World:    f.World,
		Export:   export,
		Mode:     mode,
		Duration: duration,
	}
}

// WriteFile writes a scene to a YAML file
func WriteFile(f *File, path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a scene from a YAML file. Missing world settings fall back to DefaultWorld.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f := File{World: DefaultWorld()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}

	return &f, nil
}

// FindLatest finds the most recent scene file in dir
func FindLatest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read scenes directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var scenes []candidate
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		// files removed since ReadDir and broken links are skipped
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		scenes = append(scenes, candidate{path, info.ModTime()})
	}

	if len(scenes) == 0 {
		return "", fmt.Errorf("no scene files found in %s", dir)
	}

	// Sort by modification time (newest first)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].modTime.After(scenes[j].modTime)
	})

	return scenes[0].path, nil
}
