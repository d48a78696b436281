package config

import (
	"fmt"
	"time"
)

type Codec string

const (
	CodecH264 Codec = "H.264"
	CodecH265 Codec = "H.265"
	CodecVP9  Codec = "VP9"
)

type BitrateMode string

const (
	BitrateCBR BitrateMode = "CBR"
	BitrateVBR BitrateMode = "VBR"
)

type RenderEngine string

const (
	EngineEevee  RenderEngine = "BLENDER_EEVEE"
	EngineCycles RenderEngine = "CYCLES"
)

type Container string

const (
	ContainerMP4 Container = "MP4"
	ContainerAVI Container = "AVI"
	ContainerMKV Container = "MKV"
)

// Extension returns the file extension the engine writes for the container.
func (c Container) Extension() string {
	switch c {
	case ContainerAVI:
		return ".avi"
	case ContainerMKV:
		return ".mkv"
	default:
		return ".mp4"
	}
}

type ExportSettings struct {
	FrameRate   int          `yaml:"frame_rate"`
	Width       int          `yaml:"width"`
	Height      int          `yaml:"height"`
	Codec       Codec        `yaml:"codec"`
	BitrateMode BitrateMode  `yaml:"bitrate_mode"`
	BitrateKbps int          `yaml:"bitrate_kbps"`
	GopSize     int          `yaml:"gop_size"`
	Engine      RenderEngine `yaml:"engine"`
	Container   Container    `yaml:"container"`
	BaseName    string       `yaml:"base_name"`
	Duration    float64      `yaml:"duration"` // seconds
}

type PreviewSettings struct {
	Port        int           `yaml:"port"`
	Timeout     time.Duration `yaml:"timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	MaxRetries  int           `yaml:"max_retries"`
}

type LogSettings struct {
	Development bool   `yaml:"development"`
	Debug       bool   `yaml:"debug"`
	File        string `yaml:"file"`
}

type Config struct {
	ExecutablePath string          `yaml:"executable_path"`
	OutputDir      string          `yaml:"output_dir"`
	LastScenePath  string          `yaml:"last_scene_path,omitempty"`
	Export         ExportSettings  `yaml:"export"`
	Preview        PreviewSettings `yaml:"preview"`
	Log            LogSettings     `yaml:"log"`
}

func DefaultExportSettings() ExportSettings {
	return ExportSettings{
		FrameRate:   30,
		Width:       1920,
		Height:      1080,
		Codec:       CodecH264,
		BitrateMode: BitrateVBR,
		BitrateKbps: 5000,
		GopSize:     18,
		Engine:      EngineEevee,
		Container:   ContainerMP4,
		BaseName:    "render",
		Duration:    5.0,
	}
}

func DefaultPreviewSettings() PreviewSettings {
	return PreviewSettings{
		Port:        5000,
		Timeout:     20 * time.Second,
		SettleDelay: 2 * time.Second,
		MaxRetries:  2,
	}
}

func Default() Config {
	return Config{
		OutputDir: "output",
		Export:    DefaultExportSettings(),
		Preview:   DefaultPreviewSettings(),
		Log:       LogSettings{Development: true},
	}
}

// Validate checks the numeric and enum invariants of the export settings.
func (e ExportSettings) Validate() error {
	if e.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", e.FrameRate)
	}
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", e.Width, e.Height)
	}
	if e.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate must be positive, got %d", e.BitrateKbps)
	}
	if e.GopSize <= 0 {
		return fmt.Errorf("gop size must be positive, got %d", e.GopSize)
	}
	if e.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", e.Duration)
	}
	switch e.Codec {
	case CodecH264, CodecH265, CodecVP9:
	default:
		return fmt.Errorf("unknown codec: %s", e.Codec)
	}
	switch e.BitrateMode {
	case BitrateCBR, BitrateVBR:
	default:
		return fmt.Errorf("unknown bitrate mode: %s", e.BitrateMode)
	}
	switch e.Engine {
	case EngineEevee, EngineCycles:
	default:
		return fmt.Errorf("unknown render engine: %s", e.Engine)
	}
	switch e.Container {
	case ContainerMP4, ContainerAVI, ContainerMKV:
	default:
		return fmt.Errorf("unknown container: %s", e.Container)
	}
	return nil
}

// FrameEnd is the last frame index of a clip of the given length.
func (e ExportSettings) FrameEnd(duration float64) int {
	return int(duration * float64(e.FrameRate))
}
