package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrProbeUnavailable means ffprobe is not on PATH.
var ErrProbeUnavailable = errors.New("ffprobe not found")

// MediaDuration returns the container duration of path in seconds.
func MediaDuration(ctx context.Context, path string) (float64, error) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, ErrProbeUnavailable
	}
	cmd := exec.CommandContext(ctx, bin, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseDuration(out)
}

func parseDuration(out []byte) (float64, error) {
	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}
