package script

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(entities ...scene.Entity) scene.Request {
	return scene.Request{
		Entities: entities,
		World:    scene.DefaultWorld(),
		Export:   config.DefaultExportSettings(),
		Mode:     scene.ModeBatch,
		Duration: 2,
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestCompileDeterministic(t *testing.T) {
	req := testRequest(
		scene.NewModel("Robot", "/assets/robot.glb", scene.IdentityTransform(), scene.NewAutoRotate(scene.AxisY, 45)),
		scene.NewLight("Key", scene.LightArea, 300, "#FFCC88", scene.IdentityTransform()),
	)
	req.World.Camera.Mode = scene.CameraAuto

	a := CompileBatch(req, "/out/clip.mp4")
	b := CompileBatch(req, "/out/clip.mp4")
	assert.Equal(t, a, b)

	p1 := CompilePreview(req, "/out/still.png")
	p2 := CompilePreview(req, "/out/still.png")
	assert.Equal(t, p1, p2)
}

func TestParseHexColor(t *testing.T) {
	c, ok := ParseHexColor("#333333")
	require.True(t, ok)
	assert.InDelta(t, 0.2, c.R, 1e-9)
	assert.InDelta(t, 0.2, c.G, 1e-9)
	assert.InDelta(t, 0.2, c.B, 1e-9)

	c, ok = ParseHexColor("#FF000080")
	require.True(t, ok)
	assert.Equal(t, RGB{1, 0, 0}, c)

	for _, bad := range []string{"blue", "", "#12345", "333333", "#GG0000", "#12 456"} {
		_, ok := ParseHexColor(bad)
		assert.False(t, ok, bad)
	}
}

func TestMalformedColorsAreSkipped(t *testing.T) {
	req := testRequest(scene.NewLight("Key", scene.LightPoint, 100, "blue", scene.IdentityTransform()))
	req.World.BackgroundColor = "blue"

	s := CompileBatch(req, "/out/clip.mp4")
	assert.NotContains(t, s, "bg_node.inputs[0].default_value")
	assert.NotContains(t, s, "light.data.color")
	assert.Contains(t, s, "light.data.energy = 100")
}

func TestSolidBackgroundColor(t *testing.T) {
	s := CompileBatch(testRequest(), "/out/clip.mp4")
	assert.Contains(t, s, "    bg_node.inputs[0].default_value = (0.2, 0.2, 0.2, 1)\n")
	assert.Contains(t, s, "    bg_node.inputs[1].default_value = 1\n")
}

func TestFallbackLight(t *testing.T) {
	empty := CompileBatch(testRequest(), "/out/clip.mp4")
	assert.Equal(t, 1, strings.Count(empty, "light_add("))
	assert.Contains(t, empty, "# Default Fallback Light")

	lit := CompileBatch(testRequest(
		scene.NewLight("Key", scene.LightSun, 3, "#FFFFFF", scene.IdentityTransform()),
	), "/out/clip.mp4")
	assert.NotContains(t, lit, "# Default Fallback Light")
	assert.Equal(t, 1, strings.Count(lit, "light_add("))

	two := CompileBatch(testRequest(
		scene.NewLight("Key", scene.LightSun, 3, "#FFFFFF", scene.IdentityTransform()),
		scene.NewLight("Fill", scene.LightPoint, 3, "#FFFFFF", scene.IdentityTransform()),
	), "/out/clip.mp4")
	assert.Equal(t, 2, strings.Count(two, "light_add("))
}

func TestLightRotationInRadians(t *testing.T) {
	tr := scene.IdentityTransform()
	tr.Position = scene.Vec3{X: 1, Y: -2, Z: 3.5}
	tr.Rotation = scene.Vec3{X: 90, Y: 0, Z: 180}
	s := CompileBatch(testRequest(scene.NewLight("Key", scene.LightSpot, 800, "#FFFFFF", tr)), "/out/clip.mp4")

	assert.Contains(t, s, "bpy.ops.object.light_add(type='SPOT', location=(1, -2, 3.5))\n")
	want := "light.rotation_euler = (" + num(radians(90)) + ", 0, " + num(radians(180)) + ")\n"
	assert.Contains(t, s, want)
	assert.Contains(t, s, "light.data.color = (1, 1, 1)\n")
}

func TestAutoCameraWithoutMesh(t *testing.T) {
	req := testRequest()
	req.World.Camera.Mode = scene.CameraAuto
	s := CompileBatch(req, "/out/clip.mp4")

	assert.Contains(t, s, "bpy.ops.object.camera_add(location=(0, -10, 5), rotation=(1.1, 0, 0))\n")
	assert.Contains(t, s, "if has_mesh:\n")

	// every placement and constraint statement is guarded by has_mesh
	for _, l := range lines(s) {
		if strings.Contains(l, "TRACK_TO") || strings.Contains(l, "cam.location") {
			assert.True(t, strings.HasPrefix(l, "    "), "unguarded: %q", l)
		}
	}
}

func TestManualCamera(t *testing.T) {
	req := testRequest()
	req.World.Camera = scene.Camera{Mode: scene.CameraManual, Distance: 5, Height: 2, Angle: 90}
	s := CompileBatch(req, "/out/clip.mp4")

	x, y := ManualCameraPosition(5, 90)
	assert.InDelta(t, 5, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
	assert.Contains(t, s, "cam.location = ("+num(x)+", "+num(y)+", 2)\n")
	assert.Contains(t, s, "\nbpy.ops.object.constraint_add(type='TRACK_TO')\n")
	assert.Contains(t, s, "cam.constraints['Track To'].track_axis = 'TRACK_NEGATIVE_Z'")

	x, y = ManualCameraPosition(10, 0)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, -10, y, 1e-9)
}

func TestAutoRotateKeyframes(t *testing.T) {
	req := testRequest(scene.NewModel("Robot", "/assets/robot.fbx", scene.IdentityTransform(),
		scene.NewAutoRotate(scene.AxisZ, 90)))
	require.Equal(t, 60, req.FrameEnd())

	s := CompileBatch(req, "/out/clip.mp4")
	assert.Equal(t, 61, strings.Count(s, "keyframe_insert("))
	assert.Contains(t, s, "start_angle = obj.rotation_euler[2]\n")

	ls := lines(s)
	found := false
	for i, l := range ls {
		if strings.TrimSpace(l) != "obj.keyframe_insert(data_path='rotation_euler', index=2, frame=30)" {
			continue
		}
		found = true
		prev := strings.TrimSpace(ls[i-1])
		require.True(t, strings.HasPrefix(prev, "obj.rotation_euler[2] = start_angle + "), prev)
		v, err := strconv.ParseFloat(strings.TrimPrefix(prev, "obj.rotation_euler[2] = start_angle + "), 64)
		require.NoError(t, err)
		assert.InDelta(t, math.Pi/2, v, 1e-12)
	}
	assert.True(t, found)
	assert.Contains(t, s, "obj.keyframe_insert(data_path='rotation_euler', index=2, frame=60)\n")
	assert.NotContains(t, s, "frame=61)")
	assert.Contains(t, s, "bpy.context.scene.frame_end = 60\n")
}

func TestPreviewSkipsModifiers(t *testing.T) {
	req := testRequest(scene.NewModel("Robot", "/assets/robot.fbx", scene.IdentityTransform(),
		scene.NewAutoRotate(scene.AxisZ, 90)))
	s := CompilePreview(req, "/out/still.png")

	assert.NotContains(t, s, "keyframe_insert")
	assert.Contains(t, s, "bpy.ops.render.render(write_still=True)")
	assert.Contains(t, s, "file_format = 'PNG'")
	assert.NotContains(t, s, "animation=True")
	assert.NotContains(t, s, "FFMPEG")
}

func TestModelImportAndSkip(t *testing.T) {
	tests := []struct {
		path string
		op   string
	}{
		{"/a/robot.FBX", "bpy.ops.import_scene.fbx(filepath='/a/robot.FBX')"},
		{"/a/robot.obj", "bpy.ops.wm.obj_import(filepath='/a/robot.obj')"},
		{"/a/robot.glb", "bpy.ops.import_scene.gltf(filepath='/a/robot.glb')"},
		{"/a/robot.gltf", "bpy.ops.import_scene.gltf(filepath='/a/robot.gltf')"},
		{`C:\assets\robot.stl`, "bpy.ops.wm.stl_import(filepath='C:/assets/robot.stl')"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := CompileBatch(testRequest(scene.NewModel("M", tt.path, scene.IdentityTransform())), "/o.mp4")
			assert.Contains(t, s, tt.op+"\n")
			assert.Contains(t, s, "obj.rotation_mode = 'XYZ'")
			assert.Contains(t, s, "if obj.parent is None or obj.parent not in bpy.context.selected_objects:")
		})
	}

	for _, skipped := range []string{"", "/a/robot.blend", "/a/robot"} {
		s := CompileBatch(testRequest(scene.NewModel("M", skipped, scene.IdentityTransform())), "/o.mp4")
		assert.NotContains(t, s, "# Import M", skipped)
		assert.NotContains(t, s, "selected_objects", skipped)
	}
	assert.True(t, IsSupportedAsset("x.GLTF"))
	assert.Equal(t, []string{".fbx", ".glb", ".gltf", ".obj", ".stl"}, SupportedFormats())
}

func TestModelTransform(t *testing.T) {
	tr := scene.Transform{
		Position: scene.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: scene.Vec3{Z: 90},
		Scale:    scene.Vec3{X: 2, Y: 2, Z: 2},
	}
	s := CompileBatch(testRequest(scene.NewModel("M", "/a/m.glb", tr)), "/o.mp4")
	assert.Contains(t, s, "        obj.location = (1, 2, 3)\n")
	assert.Contains(t, s, "        obj.rotation_euler = (0, 0, "+num(radians(90))+")\n")
	assert.Contains(t, s, "        obj.scale = (2, 2, 2)\n")
}

func TestQuotedPaths(t *testing.T) {
	req := testRequest(scene.NewModel("O'Brien", `D:\models\o'brien.obj`, scene.IdentityTransform()))
	s := CompileBatch(req, `C:\renders\clip.mp4`)
	assert.Contains(t, s, `bpy.ops.wm.obj_import(filepath='D:/models/o\'brien.obj')`)
	assert.Contains(t, s, "bpy.context.scene.render.filepath = 'C:/renders/clip.mp4'\n")
}

func TestEnvironmentTexture(t *testing.T) {
	req := testRequest()
	req.World.Environment = scene.EnvCustomImage
	req.World.TexturePath = `C:\hdri\studio.exr`
	req.World.ShowBackground = true

	shown := CompileBatch(req, "/o.mp4")
	assert.Contains(t, shown, "bpy.data.images.load('C:/hdri/studio.exr')")
	assert.Contains(t, shown, "world.node_tree.links.new(tex_node.outputs[0], bg_node.inputs[0])")
	assert.NotContains(t, shown, "Is Camera Ray")
	assert.Contains(t, shown, "except Exception as e:\n        print(f'Failed to load environment texture: {e}')")

	req.World.ShowBackground = false
	hidden := CompileBatch(req, "/o.mp4")
	assert.Contains(t, hidden, "path_node.outputs['Is Camera Ray']")
	assert.Contains(t, hidden, "solid_bg_node.inputs[0].default_value = (0.2, 0.2, 0.2, 1)")
	assert.Contains(t, hidden, "world.node_tree.links.new(mix_node.outputs[0], out_node.inputs[0])")

	// no texture path: nothing to load
	req.World.TexturePath = ""
	none := CompileBatch(req, "/o.mp4")
	assert.NotContains(t, none, "ShaderNodeTexEnvironment")
}

func TestRenderSettings(t *testing.T) {
	req := testRequest()
	req.Export.Engine = config.EngineCycles
	req.Export.Codec = config.CodecH265
	req.Export.Container = config.ContainerMKV
	req.Export.BitrateMode = config.BitrateCBR
	req.Export.BitrateKbps = 8000
	req.Export.GopSize = 12
	req.Export.Width, req.Export.Height = 1280, 720

	s := CompileBatch(req, "/o.mkv")
	assert.Contains(t, s, "bpy.context.scene.render.engine = 'CYCLES'")
	assert.Contains(t, s, "bpy.context.scene.cycles.samples = 128")
	assert.NotContains(t, s, "eevee")
	assert.Contains(t, s, "resolution_x = 1280\n")
	assert.Contains(t, s, "resolution_y = 720\n")
	assert.Contains(t, s, "render.fps = 30\n")
	assert.Contains(t, s, "ffmpeg.format = 'MATROSKA'")
	assert.Contains(t, s, "ffmpeg.codec = 'H265'")
	assert.Contains(t, s, "constant_rate_factor = 'NONE'")
	assert.Contains(t, s, "ffmpeg.maxrate = 8000")
	assert.Contains(t, s, "ffmpeg.gopsize = 12")
	assert.Contains(t, s, "file_format = 'FFMPEG'")
	assert.Contains(t, s, "media_type = 'VIDEO'")
	assert.Contains(t, s, "raise e2")
	assert.Contains(t, s, "bpy.ops.render.render(animation=True)")

	req.Export.Engine = ""
	req.Export.BitrateMode = config.BitrateVBR
	req.Export.Codec = config.CodecVP9
	s = CompileBatch(req, "/o.mkv")
	assert.Contains(t, s, "bpy.context.scene.render.engine = 'BLENDER_EEVEE'")
	assert.Contains(t, s, "taa_render_samples = 64")
	assert.Contains(t, s, "constant_rate_factor = 'MEDIUM'")
	assert.Contains(t, s, "ffmpeg.codec = 'WEBM'")
}

func TestSceneReset(t *testing.T) {
	s := CompilePreview(testRequest(), "/o.png")
	ls := lines(s)
	require.GreaterOrEqual(t, len(ls), 7)
	assert.Equal(t, "bpy.ops.wm.read_factory_settings(use_empty=False)", ls[4])
	assert.Equal(t, "bpy.ops.object.select_all(action='SELECT')", ls[5])
	assert.Equal(t, "bpy.ops.object.delete()", ls[6])
}

func TestCustomModifierRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("bounce", func(w *Writer, ctx EmitContext, m scene.Modifier) {
		w.Line(ctx.Indent, "# bounce until frame %d", ctx.FrameEnd)
	})

	e := scene.NewModel("Ball", "/a/ball.glb", scene.IdentityTransform(),
		scene.Modifier{Kind: "bounce"}, scene.Modifier{Kind: "unknown"})
	j := Job{
		Entities: []scene.Entity{e},
		World:    scene.DefaultWorld(),
		Export:   config.DefaultExportSettings(),
		Mode:     scene.ModeBatch,
		FrameEnd: 10,
	}

	assert.Contains(t, r.Compile(j), "        # bounce until frame 10\n")
	assert.NotContains(t, Compile(j), "bounce")
}

func TestServerScript(t *testing.T) {
	s := ServerScript(5123)
	assert.Contains(t, s, "server.bind(('127.0.0.1', 5123))")
	assert.Contains(t, s, "struct.unpack('<I', header)")
	assert.Contains(t, s, "struct.pack('<I', len(resp_data))")
	assert.Contains(t, s, "response = 'OK'")
	assert.NotContains(t, s, "%!")
}
