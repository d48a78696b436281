package scene

import (
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scene2video/internal/config"
)

// Vec3 is a three component vector.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Transform places an entity in the world. Rotation is Euler XYZ in degrees.
type Transform struct {
	Position Vec3 `yaml:"position"`
	Rotation Vec3 `yaml:"rotation"`
	Scale    Vec3 `yaml:"scale"`
}

func IdentityTransform() Transform {
	return Transform{Scale: Vec3{1, 1, 1}}
}

// UnmarshalYAML starts from IdentityTransform, so an omitted scale stays 1.
func (t *Transform) UnmarshalYAML(value *yaml.Node) error {
	type plain Transform
	v := plain(IdentityTransform())
	if err := value.Decode(&v); err != nil {
		return err
	}
	*t = Transform(v)
	return nil
}

type Kind string

const (
	KindModel Kind = "model"
	KindLight Kind = "light"
)

type LightKind string

const (
	LightPoint LightKind = "POINT"
	LightSun   LightKind = "SUN"
	LightSpot  LightKind = "SPOT"
	LightArea  LightKind = "AREA"
)

// Entity is one placeable object. Kind selects which payload is set.
type Entity struct {
	Name      string     `yaml:"name"`
	Kind      Kind       `yaml:"kind"`
	Transform Transform  `yaml:"transform"`
	Modifiers []Modifier `yaml:"modifiers,omitempty"`
	Model     *Model     `yaml:"model,omitempty"`
	Light     *Light     `yaml:"light,omitempty"`
}

type Model struct {
	Path string `yaml:"path"`
}

type Light struct {
	Type   LightKind `yaml:"type"`
	Energy float64   `yaml:"energy"`
	Color  string    `yaml:"color"` // #RRGGBB
}

const (
	DefaultLightEnergy = 1000.0
	DefaultLightColor  = "#FFFFFF"
)

func DefaultLight() Light {
	return Light{Type: LightPoint, Energy: DefaultLightEnergy, Color: DefaultLightColor}
}

func (l *Light) UnmarshalYAML(value *yaml.Node) error {
	type plain Light
	v := plain(DefaultLight())
	if err := value.Decode(&v); err != nil {
		return err
	}
	*l = Light(v)
	return nil
}

// UnmarshalYAML gives entities without a transform block the identity transform.
func (e *Entity) UnmarshalYAML(value *yaml.Node) error {
	type plain Entity
	v := plain{Transform: IdentityTransform()}
	if err := value.Decode(&v); err != nil {
		return err
	}
	*e = Entity(v)
	return nil
}

func NewModel(name, path string, t Transform, mods ...Modifier) Entity {
	return Entity{Name: name, Kind: KindModel, Transform: t, Modifiers: mods, Model: &Model{Path: path}}
}

func NewLight(name string, kind LightKind, energy float64, color string, t Transform) Entity {
	return Entity{Name: name, Kind: KindLight, Transform: t, Light: &Light{Type: kind, Energy: energy, Color: color}}
}

func (e Entity) IsLight() bool { return e.Kind == KindLight && e.Light != nil }
func (e Entity) IsModel() bool { return e.Kind == KindModel && e.Model != nil }

type ModifierKind string

const ModifierAutoRotate ModifierKind = "auto_rotate"

// Modifier is a behaviour attached to an entity. Kind selects the payload.
type Modifier struct {
	Kind       ModifierKind `yaml:"kind"`
	AutoRotate *AutoRotate  `yaml:"auto_rotate,omitempty"`
}

type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// Index maps the axis to its rotation_euler component. Unknown axes rotate around Z.
func (a Axis) Index() int {
	switch a {
	case AxisX:
		return 0
	case AxisY:
		return 1
	default:
		return 2
	}
}

// AutoRotate spins the entity at a constant rate in degrees per second.
type AutoRotate struct {
	Axis  Axis    `yaml:"axis"`
	Speed float64 `yaml:"speed"`
}

func NewAutoRotate(axis Axis, speed float64) Modifier {
	return Modifier{Kind: ModifierAutoRotate, AutoRotate: &AutoRotate{Axis: axis, Speed: speed}}
}

type EnvironmentType string

const (
	EnvSolidColor   EnvironmentType = "solid_color"
	EnvStudioPreset EnvironmentType = "studio_preset"
	EnvCustomImage  EnvironmentType = "custom_image"
)

type CameraMode string

const (
	CameraAuto   CameraMode = "auto"
	CameraManual CameraMode = "manual"
)

// Camera holds the manual placement; Distance, Height and Angle are ignored in auto mode.
type Camera struct {
	Mode     CameraMode `yaml:"mode"`
	Distance float64    `yaml:"distance"`
	Height   float64    `yaml:"height"`
	Angle    float64    `yaml:"angle"` // degrees
}

type World struct {
	Environment     EnvironmentType `yaml:"environment"`
	BackgroundColor string          `yaml:"background_color"`
	TexturePath     string          `yaml:"texture_path,omitempty"`
	Strength        float64         `yaml:"strength"`
	ShowBackground  bool            `yaml:"show_background"`
	Camera          Camera          `yaml:"camera"`
}

func DefaultWorld() World {
	return World{
		Environment:     EnvSolidColor,
		BackgroundColor: "#333333",
		Strength:        1.0,
		ShowBackground:  true,
		Camera:          Camera{Mode: CameraManual, Distance: 5},
	}
}

type Mode int

const (
	ModePreview Mode = iota
	ModeBatch
)

func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "preview"
}

// Request is an immutable snapshot handed to the render core.
type Request struct {
	Entities []Entity
	World    World
	Export   config.ExportSettings
	Mode     Mode
	Duration float64 // seconds
}

// FrameEnd is duration x fps, the last frame index of a batch render.
func (r Request) FrameEnd() int {
	return r.Export.FrameEnd(r.Duration)
}

// ExportOr returns the request's export settings, or def when the request
// carries none.
func (r Request) ExportOr(def config.ExportSettings) config.ExportSettings {
	if r.Export == (config.ExportSettings{}) {
		return def
	}
	return r.Export
}
