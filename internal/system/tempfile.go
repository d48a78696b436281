package system

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ivlev/scene2video/internal/console"
)

// ServerScriptName is the fixed file name of the preview worker script.
const ServerScriptName = "scene2video_server.py"

// WriteTempScript writes a uniquely named script into dir (os.TempDir when empty).
func WriteTempScript(dir, contents string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("scene2video_script_%s.py", uuid.NewString()))
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return path, nil
}

// WriteServerScript recreates the fixed-name worker script in dir.
func WriteServerScript(dir, contents string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, ServerScriptName)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return "", fmt.Errorf("write server script: %w", err)
	}
	return path, nil
}

// RemoveScript deletes path. Failures are logged to sink.
func RemoveScript(path string, sink console.Sink) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		console.Logf(sink, "Warning: Failed to delete temp script %s: %v", path, err)
	}
}
