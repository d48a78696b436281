package script

import (
	"math"

	"github.com/ivlev/scene2video/internal/scene"
)

// AutoFrameFallbackDistance is used when all geometry collapses to a point.
const AutoFrameFallbackDistance = 10

func writeCamera(w *Writer, cam scene.Camera) {
	w.Line(0, "# Camera Setup")
	w.Line(0, "bpy.ops.object.camera_add(location=(0, -10, 5), rotation=(1.1, 0, 0))")
	w.Line(0, "cam = bpy.context.object")
	w.Line(0, "bpy.context.scene.camera = cam")

	if cam.Mode == scene.CameraAuto {
		writeAutoFrame(w)
		return
	}

	x, y := ManualCameraPosition(cam.Distance, cam.Angle)
	w.Line(0, "# Manual Camera Setup")
	w.Line(0, "cam.location = (%s, %s, %s)", num(x), num(y), num(cam.Height))
	w.Line(0, "bpy.ops.object.empty_add(location=(0, 0, 0))")
	w.Line(0, "target = bpy.context.object")
	writeTrackTo(w, 0)
}

// ManualCameraPosition converts a distance and an angle in degrees around
// the Z axis into the camera's X/Y position. Angle 0 looks down +Y.
func ManualCameraPosition(distance, angleDeg float64) (x, y float64) {
	theta := radians(angleDeg)
	return distance * math.Sin(theta), -distance * math.Cos(theta)
}

// writeAutoFrame emits the bounding box search that runs inside the engine.
// Without meshes the camera stays at its initial placement, unconstrained.
func writeAutoFrame(w *Writer) {
	w.Line(0, "# Auto Frame")
	w.Line(0, "min_x, min_y, min_z = float('inf'), float('inf'), float('inf')")
	w.Line(0, "max_x, max_y, max_z = float('-inf'), float('-inf'), float('-inf')")
	w.Line(0, "has_mesh = False")
	w.Line(0, "for obj in bpy.context.scene.objects:")
	w.Line(4, "if obj.type == 'MESH':")
	w.Line(8, "has_mesh = True")
	w.Line(8, "for v in obj.bound_box:")
	w.Line(12, "world_v = obj.matrix_world @ mathutils.Vector(v)")
	w.Line(12, "min_x = min(min_x, world_v.x)")
	w.Line(12, "min_y = min(min_y, world_v.y)")
	w.Line(12, "min_z = min(min_z, world_v.z)")
	w.Line(12, "max_x = max(max_x, world_v.x)")
	w.Line(12, "max_y = max(max_y, world_v.y)")
	w.Line(12, "max_z = max(max_z, world_v.z)")
	w.Line(0, "if has_mesh:")
	w.Line(4, "center_x = (min_x + max_x) / 2")
	w.Line(4, "center_y = (min_y + max_y) / 2")
	w.Line(4, "center_z = (min_z + max_z) / 2")
	w.Line(4, "size = max(max_x - min_x, max_y - min_y, max_z - min_z)")
	w.Line(4, "dist = size * 1.5 if size > 0 else %d", AutoFrameFallbackDistance)
	w.Line(4, "cam.location = (center_x, center_y - dist, center_z + size * 0.5)")
	w.Line(4, "print(f'Auto frame: center=({center_x}, {center_y}, {center_z}) size={size} camera={cam.location}')")
	w.Line(4, "bpy.ops.object.empty_add(location=(center_x, center_y, center_z))")
	w.Line(4, "target = bpy.context.object")
	writeTrackTo(w, 4)
}

func writeTrackTo(w *Writer, in int) {
	w.Line(in, "bpy.context.view_layer.objects.active = cam")
	w.Line(in, "bpy.ops.object.constraint_add(type='TRACK_TO')")
	w.Line(in, "cam.constraints['Track To'].target = target")
	w.Line(in, "cam.constraints['Track To'].track_axis = 'TRACK_NEGATIVE_Z'")
	w.Line(in, "cam.constraints['Track To'].up_axis = 'UP_Y'")
}
