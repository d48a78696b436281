package script

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/scene2video/internal/scene"
)

// importers maps a lower-case asset extension to the engine import operator.
var importers = map[string]string{
	".fbx":  "bpy.ops.import_scene.fbx",
	".obj":  "bpy.ops.wm.obj_import",
	".glb":  "bpy.ops.import_scene.gltf",
	".gltf": "bpy.ops.import_scene.gltf",
	".stl":  "bpy.ops.wm.stl_import",
}

// SupportedFormats lists the asset extensions models may use.
func SupportedFormats() []string {
	exts := make([]string, 0, len(importers))
	for ext := range importers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupportedAsset reports whether path has an importable extension.
func IsSupportedAsset(path string) bool {
	_, ok := importers[strings.ToLower(filepath.Ext(path))]
	return ok
}

func writeLight(w *Writer, e scene.Entity) {
	l := e.Light
	kind := l.Type
	switch kind {
	case scene.LightPoint, scene.LightSun, scene.LightSpot, scene.LightArea:
	default:
		kind = scene.LightPoint
	}

	w.Line(0, "# Light: %s", comment(e.Name))
	w.Line(0, "bpy.ops.object.light_add(type='%s', location=%s)", kind, vec(e.Transform.Position))
	w.Line(0, "light = bpy.context.object")
	w.Line(0, "light.data.energy = %s", num(l.Energy))
	if c, ok := ParseHexColor(l.Color); ok {
		w.Line(0, "light.data.color = %s", c.tuple())
	}
	w.Line(0, "light.rotation_euler = %s", radVec(e.Transform.Rotation))
}

func writeModel(w *Writer, r *Registry, e scene.Entity, j Job) {
	path := strings.ReplaceAll(e.Model.Path, `\`, "/")
	if path == "" {
		return
	}
	op, ok := importers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return
	}

	t := e.Transform
	w.Line(0, "# Import %s", comment(e.Name))
	w.Line(0, "%s(filepath=%s)", op, quote(path))

	// freshly imported objects are the current selection
	w.Line(0, "for obj in bpy.context.selected_objects:")
	w.Line(4, "obj.rotation_mode = 'XYZ'")
	w.Line(4, "for c in list(obj.constraints):")
	w.Line(8, "obj.constraints.remove(c)")
	// children inherit the parent's transform, only roots get the entity transform
	w.Line(4, "if obj.parent is None or obj.parent not in bpy.context.selected_objects:")
	w.Line(8, "obj.location = %s", vec(t.Position))
	w.Line(8, "obj.rotation_euler = %s", radVec(t.Rotation))
	w.Line(8, "obj.scale = %s", vec(t.Scale))
	w.Line(8, "print(f'Applied Transform to {obj.name}: Pos={obj.location}, Rot={obj.rotation_euler}, Scale={obj.scale}')")

	if j.Mode == scene.ModePreview {
		return
	}
	ctx := EmitContext{Indent: 8, FrameEnd: j.FrameEnd, FPS: j.Export.FrameRate}
	for _, m := range e.Modifiers {
		r.emit(w, ctx, m)
	}
}
