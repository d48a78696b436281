package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/engine"
	"github.com/ivlev/scene2video/internal/preview"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/script"
	"github.com/ivlev/scene2video/internal/system"
)

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	scenePtr := fs.String("scene", "", "Scene file (default: newest file in scenes/)")
	configPtr := fs.String("config", defaultConfig, "Configuration file")
	outPtr := fs.String("out", "", "Output directory (default: output_dir from the configuration)")
	namePtr := fs.String("name", "", "Output file name (default: <scene>_<timestamp>)")
	durationPtr := fs.Float64("duration", 0, "Animation length in seconds (default: export.duration)")
	statsPtr := fs.Bool("stats", false, "Print render counters when done")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(*configPtr)
	if err != nil {
		return err
	}
	defer a.close()

	f, scenePath, err := loadScene(*scenePtr)
	if err != nil {
		return err
	}
	duration := *durationPtr
	if duration <= 0 {
		duration = a.cfg.Export.Duration
	}
	name := *namePtr
	if name == "" {
		name = defaultName(scenePath)
	}

	fmt.Println("--- [SCENE2VIDEO: BATCH RENDER] ---")
	fmt.Printf("[*] Scene: %s | Entities: %d\n", scenePath, len(f.Entities))
	fmt.Printf("[*] Resolution: %dx%d @ %d FPS | Duration: %.2fs | %s %s\n",
		a.cfg.Export.Width, a.cfg.Export.Height, a.cfg.Export.FrameRate, duration, a.cfg.Export.Codec, a.cfg.Export.Container)
	fmt.Println("-----------------------------------")

	project := engine.NewProject(a.provider, a.sup, a.sink, a.metrics)
	res, err := project.Render(ctx, f.Request(a.cfg.Export, scene.ModeBatch, duration), *outPtr, name)
	if *statsPtr {
		a.printStats()
	}
	if err != nil {
		return err
	}

	if res.OutputPath == "" {
		fmt.Printf("[!] Render finished but no file was found for %s\n", res.ExpectedPath)
		return nil
	}
	fmt.Printf("[+++] Success! Video saved: %s (%.2fs)\n", res.OutputPath, res.Elapsed.Seconds())
	return nil
}

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	scenePtr := fs.String("scene", "", "Scene file (default: newest file in scenes/)")
	configPtr := fs.String("config", defaultConfig, "Configuration file")
	outPtr := fs.String("out", "", "Preview image (default: <output_dir>/preview.png)")
	thumbPtr := fs.Int("thumb", 0, "Also write a thumbnail this many pixels wide")
	statsPtr := fs.Bool("stats", false, "Print worker counters when done")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(*configPtr)
	if err != nil {
		return err
	}
	defer a.close()

	f, _, err := loadScene(*scenePtr)
	if err != nil {
		return err
	}
	out := *outPtr
	if out == "" {
		out = filepath.Join(a.cfg.OutputDir, "preview.png")
	}
	if out, err = filepath.Abs(out); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}

	launcher := &preview.EngineLauncher{Supervisor: a.sup}
	ch := preview.NewChannel(a.provider, launcher, a.sink, a.metrics, preview.OptionsFrom(a.cfg.Preview))
	defer ch.Close()

	fmt.Printf("[*] Rendering preview through %s\n", ch.Addr())
	resp, err := ch.RenderPreview(ctx, f.Request(a.cfg.Export, scene.ModePreview, 0), out)
	if *statsPtr {
		a.printStats()
	}
	if err != nil {
		return err
	}
	if resp != "OK" {
		return errors.New(resp)
	}
	fmt.Printf("[+++] Preview saved: %s\n", out)

	if *thumbPtr > 0 {
		thumb := strings.TrimSuffix(out, filepath.Ext(out)) + "_thumb.png"
		if err := ch.Thumbnail(out, thumb, *thumbPtr); err != nil {
			fmt.Printf("[!] Thumbnail failed: %v\n", err)
		} else {
			fmt.Printf("[*] Thumbnail: %s\n", thumb)
		}
	}
	return nil
}

func runScript(args []string) error {
	fs := flag.NewFlagSet("script", flag.ExitOnError)
	scenePtr := fs.String("scene", "", "Scene file (default: newest file in scenes/)")
	configPtr := fs.String("config", defaultConfig, "Configuration file")
	modePtr := fs.String("mode", "batch", "Script variant: preview or batch")
	durationPtr := fs.Float64("duration", 0, "Animation length in seconds (default: export.duration)")
	outPtr := fs.String("out", "", "Render target written into the script")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := config.Load(resolveConfig(*configPtr), ".env")
	if err != nil {
		return err
	}
	f, _, err := loadScene(*scenePtr)
	if err != nil {
		return err
	}
	duration := *durationPtr
	if duration <= 0 {
		duration = cfg.Export.Duration
	}

	switch *modePtr {
	case "preview":
		target := *outPtr
		if target == "" {
			target = filepath.Join(cfg.OutputDir, "preview.png")
		}
		fmt.Print(script.CompilePreview(f.Request(cfg.Export, scene.ModePreview, 0), target))
	case "batch":
		target := *outPtr
		if target == "" {
			target = engine.OutputPath(cfg.OutputDir, cfg.Export.BaseName, cfg.Export.Container.Extension())
		}
		fmt.Print(script.CompileBatch(f.Request(cfg.Export, scene.ModeBatch, duration), target))
	default:
		return fmt.Errorf("unknown mode %q, want preview or batch", *modePtr)
	}
	return nil
}

func runDetect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	configPtr := fs.String("config", defaultConfig, "Configuration file")
	savePtr := fs.Bool("save", false, "Store the detected path in the configuration file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := config.Load(resolveConfig(*configPtr), ".env")
	if err != nil {
		return err
	}

	exe := cfg.ExecutablePath
	if system.CheckExecutable(exe) != nil {
		if exe, err = system.DetectExecutable(ctx); err != nil {
			return err
		}
	}
	version, err := system.Version(ctx, exe)
	if err != nil {
		return err
	}
	fmt.Printf("[*] Engine: %s (version %s)\n", exe, version)

	lights, err := system.StudioLights(exe)
	if err != nil {
		fmt.Printf("[!] Studio lights unavailable: %v\n", err)
	}
	fmt.Printf("[*] Studio lights: %d\n", len(lights))
	for _, l := range lights {
		fmt.Printf("    %s\n", l)
	}

	if *savePtr {
		cfg.ExecutablePath = exe
		if err := config.Save(*configPtr, cfg); err != nil {
			return err
		}
		fmt.Printf("[+++] Saved to %s\n", *configPtr)
	}
	return nil
}

func runConfig(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "init" {
		return errors.New(`expected "config init"`)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	configPtr := fs.String("config", defaultConfig, "Configuration file to write")
	forcePtr := fs.Bool("force", false, "Overwrite an existing file")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	if _, err := os.Stat(*configPtr); err == nil && !*forcePtr {
		return fmt.Errorf("%s already exists, use -force to overwrite", *configPtr)
	}

	cfg := config.Default()
	if exe, err := system.DetectExecutable(ctx); err == nil {
		cfg.ExecutablePath = exe
		fmt.Printf("[*] Detected engine: %s\n", exe)
	} else {
		fmt.Printf("[!] Engine not detected, set executable_path in %s\n", *configPtr)
	}
	if err := os.MkdirAll(defaultSceneDir, 0o755); err != nil {
		return err
	}
	if err := config.Save(*configPtr, cfg); err != nil {
		return err
	}
	fmt.Printf("[+++] Configuration written: %s\n", *configPtr)
	return nil
}
