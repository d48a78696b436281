// Package script compiles a scene snapshot into a Python script for the
// engine's embedded interpreter.
//
// Compilation never fails. Input the engine cannot use (bad colours,
// unsupported asset formats, empty paths) is skipped and the engine keeps
// its defaults.
package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/scene"
)

// Job is everything a script depends on.
type Job struct {
	Entities   []scene.Entity
	World      scene.World
	Export     config.ExportSettings
	Mode       scene.Mode
	FrameEnd   int
	OutputPath string
}

// Compile renders the job with the default modifier registry.
// Identical jobs produce byte-identical scripts.
func Compile(j Job) string {
	return DefaultRegistry.Compile(j)
}

// CompilePreview builds a single-frame still render of req into outputPath.
func CompilePreview(req scene.Request, outputPath string) string {
	return Compile(Job{
		Entities:   req.Entities,
		World:      req.World,
		Export:     req.Export,
		Mode:       scene.ModePreview,
		OutputPath: outputPath,
	})
}

// CompileBatch builds a full animation render of frames [0, duration*fps].
func CompileBatch(req scene.Request, outputPath string) string {
	return Compile(Job{
		Entities:   req.Entities,
		World:      req.World,
		Export:     req.Export,
		Mode:       scene.ModeBatch,
		FrameEnd:   req.FrameEnd(),
		OutputPath: outputPath,
	})
}

// Compile renders j, dispatching modifiers through r.
func (r *Registry) Compile(j Job) string {
	w := &Writer{}

	writeHeader(w)
	writeWorld(w, j.World)

	hasLights := false
	for _, e := range j.Entities {
		w.Line(0, "bpy.ops.object.select_all(action='DESELECT')")
		switch e.Kind {
		case scene.KindLight:
			if e.Light == nil {
				continue
			}
			hasLights = true
			writeLight(w, e)
		case scene.KindModel:
			if e.Model == nil {
				continue
			}
			writeModel(w, r, e, j)
		}
	}

	if !hasLights {
		w.Line(0, "# Default Fallback Light")
		w.Line(0, "bpy.ops.object.light_add(type='SUN', location=(5, -5, 10))")
		w.Line(0, "bpy.context.object.data.energy = 5")
	}

	writeCamera(w, j.World.Camera)
	writeRenderSettings(w, j)

	return w.String()
}

func writeHeader(w *Writer) {
	w.Line(0, "import bpy")
	w.Line(0, "import math")
	w.Line(0, "import mathutils")
	w.Line(0, "import os")
	// use_empty=False keeps the default add-ons (FFMPEG output among them) loaded
	w.Line(0, "bpy.ops.wm.read_factory_settings(use_empty=False)")
	w.Line(0, "bpy.ops.object.select_all(action='SELECT')")
	w.Line(0, "bpy.ops.object.delete()")
}

// Writer accumulates indented script lines.
type Writer struct {
	sb strings.Builder
}

func (w *Writer) Line(indent int, format string, args ...any) {
	w.sb.WriteString(strings.Repeat(" ", indent))
	if len(args) == 0 {
		w.sb.WriteString(format)
	} else {
		fmt.Fprintf(&w.sb, format, args...)
	}
	w.sb.WriteByte('\n')
}

func (w *Writer) String() string {
	return w.sb.String()
}

// num formats a float as a Python literal with the shortest exact representation.
func num(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func vec(v scene.Vec3) string {
	return fmt.Sprintf("(%s, %s, %s)", num(v.X), num(v.Y), num(v.Z))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func radVec(v scene.Vec3) string {
	return vec(scene.Vec3{X: radians(v.X), Y: radians(v.Y), Z: radians(v.Z)})
}

// quote returns a single-quoted Python string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return "'" + s + "'"
}

// quotePath normalises separators to forward slashes before quoting.
func quotePath(p string) string {
	return quote(strings.ReplaceAll(p, `\`, "/"))
}

func comment(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
