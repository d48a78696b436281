package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/console"
	"github.com/ivlev/scene2video/internal/metrics"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/system"
)

const (
	defaultConfig   = "scene2video.yaml"
	defaultSceneDir = "scenes"
)

const usage = `Usage: scene2video <command> [flags]

Commands:
  render   render a scene to a video file
  preview  render a still through the preview worker
  script   print the generated engine script
  detect   locate the engine and list its studio lights
  config   config init: write a default configuration file

Run "scene2video <command> -h" for the flags of a command.
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "render":
		err = runRender(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "script":
		err = runScript(args)
	case "detect":
		err = runDetect(ctx, args)
	case "config":
		err = runConfig(ctx, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "[-] Unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		stop()
		log.Fatalf("[-] Error: %v", err)
	}
}

// app is what every engine-facing command shares.
type app struct {
	provider *config.FileProvider
	cfg      config.Config
	sink     *console.ZapSink
	group    system.ProcessGroup
	sup      *system.Supervisor
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newApp(configPath string) (*app, error) {
	provider := config.NewFileProvider(resolveConfig(configPath), ".env")
	cfg := provider.Config()
	if err := provider.Err(); err != nil {
		return nil, err
	}

	sink, err := console.NewZapSink(cfg.Log.Development, cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	group := system.NewProcessGroup(sink)
	reg := prometheus.NewRegistry()
	return &app{
		provider: provider,
		cfg:      cfg,
		sink:     sink,
		group:    group,
		sup:      system.NewSupervisor(sink, group),
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

// resolveConfig drops the default configuration path when that file does
// not exist, so defaults and the environment apply.
func resolveConfig(path string) string {
	if path != defaultConfig {
		return path
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (a *app) close() {
	_ = a.group.Close()
	_ = a.sink.Sync()
}

// printStats writes every collected counter, like the render report.
func (a *app) printStats() {
	families, err := a.registry.Gather()
	if err != nil {
		fmt.Printf("[!] Failed to gather metrics: %v\n", err)
		return
	}
	fmt.Println("--- [STATS] ---")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Printf("%s %g\n", name, m.GetCounter().GetValue())
		}
	}
	fmt.Println("---------------")
}

// loadScene reads path, or the newest scene file under scenes/ when empty.
func loadScene(path string) (*scene.File, string, error) {
	if path == "" {
		latest, err := scene.FindLatest(defaultSceneDir)
		if err != nil {
			return nil, "", fmt.Errorf("%v. Put a scene file into %s/", err, defaultSceneDir)
		}
		path = latest
		fmt.Printf("[*] Selected scene: %s\n", path)
	}
	f, err := scene.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// defaultName derives an output name from the scene file and the current time.
func defaultName(scenePath string) string {
	base := filepath.Base(scenePath)
	name := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	return fmt.Sprintf("%s_%s", name, time.Now().Format("2006-01-02_15-04-05"))
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(os.Stderr)
	return fs.Parse(args)
}
