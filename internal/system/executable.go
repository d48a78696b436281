package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"
)

var (
	versionPattern    = regexp.MustCompile(`Blender\s+(\d+\.\d+)`)
	versionDirPattern = regexp.MustCompile(`^\d+\.\d+$`)
)

const versionTimeout = 15 * time.Second

// candidatePaths lists well known install locations for goos, newest first.
func candidatePaths(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files\Blender Foundation\Blender 5.0\blender.exe`,
			`C:\Program Files\Blender Foundation\Blender 4.2\blender.exe`,
			`C:\Program Files\Blender Foundation\Blender 4.0\blender.exe`,
			`C:\Program Files\Blender Foundation\Blender 3.6\blender.exe`,
		}
	case "darwin":
		return []string{"/Applications/Blender.app/Contents/MacOS/Blender"}
	default:
		return []string{"/usr/bin/blender", "/usr/local/bin/blender", "/snap/bin/blender"}
	}
}

// DetectExecutable returns the first well known install that answers
// --version, falling back to blender on PATH.
func DetectExecutable(ctx context.Context) (string, error) {
	paths := candidatePaths(runtime.GOOS)
	if p, err := exec.LookPath("blender"); err == nil {
		paths = append(paths, p)
	}
	for _, p := range paths {
		if CheckExecutable(p) != nil {
			continue
		}
		if _, err := Version(ctx, p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no installation detected", ErrExecutableNotFound)
}

// Version runs exe --version and returns the major.minor from its first line.
func Version(ctx context.Context, exe string) (string, error) {
	if err := CheckExecutable(exe); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, exe, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", exe, err)
	}
	return ParseVersion(out)
}

func ParseVersion(out []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if sc.Scan() {
		if m := versionPattern.FindStringSubmatch(sc.Text()); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("unrecognised version output: %q", firstLine(out))
}

func firstLine(b []byte) string {
	s, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(s)
}

// StudioLights lists the bundled world lighting textures (*.exr, *.hdr)
// next to exe, looking under <install>/<X.Y>/datafiles/studiolights/world.
// A missing directory yields an empty list.
func StudioLights(exe string) ([]string, error) {
	if err := CheckExecutable(exe); err != nil {
		return nil, err
	}
	installDir := filepath.Dir(exe)
	roots := []string{installDir}
	if runtime.GOOS == "darwin" {
		roots = append(roots, filepath.Join(installDir, "..", "Resources"))
	}

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || !versionDirPattern.MatchString(e.Name()) {
				continue
			}
			dir := filepath.Join(root, e.Name(), "datafiles", "studiolights", "world")
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				continue
			}
			return listLightFiles(dir)
		}
	}
	return nil, nil
}

func listLightFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".exr", ".hdr":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
