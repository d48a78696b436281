package script

import (
	"github.com/ivlev/scene2video/internal/scene"
)

func writeWorld(w *Writer, world scene.World) {
	strength := world.Strength
	if strength < 0 {
		strength = 0
	}

	w.Line(0, "# World Settings")
	w.Line(0, "if bpy.context.scene.world is None:")
	w.Line(4, "bpy.context.scene.world = bpy.data.worlds.new('World')")
	w.Line(0, "bpy.context.scene.world.use_nodes = True")
	w.Line(0, "world = bpy.context.scene.world")
	w.Line(0, "if world.node_tree:")
	w.Line(4, "world.node_tree.nodes.clear()")
	w.Line(4, "bg_node = world.node_tree.nodes.new(type='ShaderNodeBackground')")
	w.Line(4, "out_node = world.node_tree.nodes.new(type='ShaderNodeOutputWorld')")
	w.Line(4, "world.node_tree.links.new(bg_node.outputs[0], out_node.inputs[0])")
	w.Line(4, "bg_node.inputs[1].default_value = %s", num(strength))

	switch world.Environment {
	case scene.EnvStudioPreset, scene.EnvCustomImage:
		if world.TexturePath == "" {
			return
		}
		writeEnvironmentTexture(w, world, strength)
	default:
		// malformed colours leave the engine default in place
		if c, ok := ParseHexColor(world.BackgroundColor); ok {
			w.Line(4, "bg_node.inputs[0].default_value = %s", c.tupleAlpha())
		}
	}
}

// writeEnvironmentTexture loads an HDRI-style texture. With the backdrop
// hidden, a light-path mix shows the texture to lighting rays only and a
// flat colour to camera rays. Load failures are printed by the engine.
func writeEnvironmentTexture(w *Writer, world scene.World, strength float64) {
	w.Line(4, "tex_node = world.node_tree.nodes.new(type='ShaderNodeTexEnvironment')")
	w.Line(4, "try:")
	w.Line(8, "tex_node.image = bpy.data.images.load(%s)", quotePath(world.TexturePath))

	if world.ShowBackground {
		w.Line(8, "world.node_tree.links.new(tex_node.outputs[0], bg_node.inputs[0])")
	} else {
		w.Line(8, "mix_node = world.node_tree.nodes.new(type='ShaderNodeMixShader')")
		w.Line(8, "path_node = world.node_tree.nodes.new(type='ShaderNodeLightPath')")
		w.Line(8, "solid_bg_node = world.node_tree.nodes.new(type='ShaderNodeBackground')")
		if c, ok := ParseHexColor(world.BackgroundColor); ok {
			w.Line(8, "solid_bg_node.inputs[0].default_value = %s", c.tupleAlpha())
		}
		w.Line(8, "solid_bg_node.inputs[1].default_value = %s", num(strength))
		// factor 0: textured lighting, factor 1: camera rays see the flat colour
		w.Line(8, "world.node_tree.links.new(tex_node.outputs[0], bg_node.inputs[0])")
		w.Line(8, "world.node_tree.links.new(bg_node.outputs[0], mix_node.inputs[1])")
		w.Line(8, "world.node_tree.links.new(solid_bg_node.outputs[0], mix_node.inputs[2])")
		w.Line(8, "world.node_tree.links.new(path_node.outputs['Is Camera Ray'], mix_node.inputs[0])")
		w.Line(8, "world.node_tree.links.new(mix_node.outputs[0], out_node.inputs[0])")
	}

	w.Line(4, "except Exception as e:")
	w.Line(8, "print(f'Failed to load environment texture: {e}')")
}
