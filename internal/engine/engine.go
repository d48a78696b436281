// Package engine runs one-shot batch renders of a scene to a video file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/console"
	"github.com/ivlev/scene2video/internal/metrics"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/script"
	"github.com/ivlev/scene2video/internal/system"
)

// Result describes a finished batch render.
type Result struct {
	// ExpectedPath is where the video was asked to go.
	ExpectedPath string
	// OutputPath is the file actually found, empty when none was.
	OutputPath string
	Duration   float64 // seconds, zero when not probed
	Elapsed    time.Duration
}

type Project struct {
	Provider   config.Provider
	Supervisor *system.Supervisor
	Sink       console.Sink
	Metrics    *metrics.Metrics

	// ScriptDir holds the temporary scripts, os.TempDir when empty.
	ScriptDir string
	// Probe reads the duration of the produced file. Nil disables probing.
	Probe func(ctx context.Context, path string) (float64, error)
}

func NewProject(provider config.Provider, sup *system.Supervisor, sink console.Sink, m *metrics.Metrics) *Project {
	if sink == nil {
		sink = console.Discard
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Project{
		Provider:   provider,
		Supervisor: sup,
		Sink:       sink,
		Metrics:    m,
		Probe:      system.MediaDuration,
	}
}

// Render compiles req, runs the engine on it and locates the produced file
// under outputDir. fileName gets the container extension when it lacks one.
// A missing output file is logged, not returned.
func (p *Project) Render(ctx context.Context, req scene.Request, outputDir, fileName string) (Result, error) {
	res, err := p.render(ctx, req, outputDir, fileName)
	if err != nil {
		p.Metrics.BatchRenders.WithLabelValues("failed").Inc()
		return res, err
	}
	p.Metrics.BatchRenders.WithLabelValues("succeeded").Inc()
	return res, nil
}

func (p *Project) render(ctx context.Context, req scene.Request, outputDir, fileName string) (Result, error) {
	start := time.Now()
	cfg := p.Provider.Config()
	req.Export = req.ExportOr(cfg.Export)
	if err := req.Export.Validate(); err != nil {
		return Result{}, fmt.Errorf("export settings: %w", err)
	}
	if req.Duration <= 0 {
		req.Duration = req.Export.Duration
	}

	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	if _, err := os.Stat(outputDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create output directory: %w", err)
		}
		console.Logf(p.Sink, "Created output directory: %s", outputDir)
	}

	exe := cfg.ExecutablePath
	if err := system.CheckExecutable(exe); err != nil {
		p.Sink.Append("Error: Blender executable not found.")
		return Result{}, err
	}

	if fileName == "" {
		fileName = req.Export.BaseName
	}
	ext := req.Export.Container.Extension()
	fullPath := OutputPath(outputDir, fileName, ext)
	res := Result{ExpectedPath: fullPath}

	console.Logf(p.Sink, "Starting Render: %s", fileName)
	console.Logf(p.Sink, "Output Path: %s", fullPath)

	req.Mode = scene.ModeBatch
	scriptPath, err := system.WriteTempScript(p.ScriptDir, script.CompileBatch(req, fullPath))
	if err != nil {
		return res, err
	}

	p.Sink.Append("Launching Blender process...")
	code, err := p.Supervisor.RunOnce(ctx, exe, scriptPath, true)
	if err != nil {
		var exitErr *system.ExitError
		if errors.As(err, &exitErr) {
			console.Logf(p.Sink, "Render Failed with Exit Code: %d", code)
			return res, fmt.Errorf("rendering failed with exit code %d, check the log for details: %w", code, err)
		}
		return res, err
	}
	p.Sink.Append("Render Complete!")

	res.OutputPath = ResolveOutput(fullPath, p.Sink)
	res.Elapsed = time.Since(start)
	if res.OutputPath != "" && p.Probe != nil {
		if d, err := p.Probe(ctx, res.OutputPath); err == nil {
			res.Duration = d
			console.Logf(p.Sink, "Video duration: %.2fs", d)
		} else if !errors.Is(err, system.ErrProbeUnavailable) {
			console.Logf(p.Sink, "Warning: could not probe %s: %v", res.OutputPath, err)
		}
	}
	console.Logf(p.Sink, "Render time: %.2fs", res.Elapsed.Seconds())
	return res, nil
}

// OutputPath joins dir and name, appending ext unless name already ends with it.
func OutputPath(dir, name, ext string) string {
	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return filepath.Join(dir, name)
}

// ResolveOutput finds the file the engine wrote for expected. The engine may
// insert a frame range before the extension (video0001-0150.mp4), so when
// expected is absent the first <name>*<ext> match in its directory is
// taken. Returns "" after logging a warning when nothing matches.
func ResolveOutput(expected string, sink console.Sink) string {
	if sink == nil {
		sink = console.Discard
	}
	if fi, err := os.Stat(expected); err == nil && !fi.IsDir() {
		console.Logf(sink, "File saved at: %s", expected)
		return expected
	}

	dir := filepath.Dir(expected)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		console.Logf(sink, "Warning: Output directory invalid: %s.", expected)
		return ""
	}

	ext := filepath.Ext(expected)
	stem := strings.TrimSuffix(filepath.Base(expected), ext)
	matches, err := filepath.Glob(filepath.Join(globEscape(dir), globEscape(stem)+"*"+globEscape(ext)))
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		console.Logf(sink, "File saved at (Blender appended frames): %s", matches[0])
		return matches[0]
	}

	console.Logf(sink, "Warning: Output file not found exactly at %s. Check folder content.", expected)
	return ""
}

// globEscape quotes pattern metacharacters. Windows globs have no escape character.
func globEscape(s string) string {
	if runtime.GOOS == "windows" {
		return s
	}
	return strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`).Replace(s)
}
