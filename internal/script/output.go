package script

import (
	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/scene"
)

// ffmpegContainer maps a container to the engine's ffmpeg.format value.
func ffmpegContainer(c config.Container) string {
	switch c {
	case config.ContainerAVI:
		return "AVI"
	case config.ContainerMKV:
		return "MATROSKA"
	default:
		return "MPEG4"
	}
}

// ffmpegCodec maps a codec to the engine's ffmpeg.codec value.
func ffmpegCodec(c config.Codec) string {
	switch c {
	case config.CodecH265:
		return "H265"
	case config.CodecVP9:
		return "WEBM"
	default:
		return "H264"
	}
}

func writeRenderSettings(w *Writer, j Job) {
	e := j.Export
	engine := e.Engine
	if engine == "" {
		engine = config.EngineEevee
	}

	w.Line(0, "# Render Settings")
	w.Line(0, "bpy.context.scene.render.engine = '%s'", engine)
	switch engine {
	case config.EngineEevee:
		w.Line(0, "if hasattr(bpy.context.scene, 'eevee'):")
		w.Line(4, "bpy.context.scene.eevee.taa_render_samples = 64")
	case config.EngineCycles:
		w.Line(0, "bpy.context.scene.cycles.device = 'GPU'")
		w.Line(0, "bpy.context.scene.cycles.samples = 128")
	}

	w.Line(0, "bpy.context.scene.render.resolution_x = %d", e.Width)
	w.Line(0, "bpy.context.scene.render.resolution_y = %d", e.Height)
	w.Line(0, "bpy.context.scene.render.resolution_percentage = 100")
	w.Line(0, "bpy.context.scene.render.fps = %d", e.FrameRate)
	w.Line(0, "bpy.context.scene.render.filepath = %s", quotePath(j.OutputPath))

	if j.Mode == scene.ModePreview {
		w.Line(0, "bpy.context.scene.render.image_settings.file_format = 'PNG'")
		w.Line(0, "bpy.context.scene.frame_current = 0")
		w.Line(0, "bpy.ops.render.render(write_still=True)")
		return
	}

	writeVideoOutput(w, e)
	w.Line(0, "bpy.context.scene.frame_start = 0")
	w.Line(0, "bpy.context.scene.frame_end = %d", j.FrameEnd)
	w.Line(0, "bpy.ops.render.render(animation=True)")
}

// writeVideoOutput tries the FFMPEG file format first, then the media_type
// property of newer engine versions, and finally lists the available
// formats before re-raising.
func writeVideoOutput(w *Writer, e config.ExportSettings) {
	w.Line(0, "# Video Output Settings")
	w.Line(0, "is_video_configured = False")
	w.Line(0, "try:")
	w.Line(4, "bpy.context.scene.render.image_settings.file_format = 'FFMPEG'")
	w.Line(4, "is_video_configured = True")
	w.Line(0, "except Exception as e:")
	w.Line(4, "print(f'Warning: Standard FFMPEG format not available: {e}')")
	w.Line(4, "try:")
	w.Line(8, "if hasattr(bpy.context.scene.render.image_settings, 'media_type'):")
	w.Line(12, "bpy.context.scene.render.image_settings.media_type = 'VIDEO'")
	w.Line(8, "else:")
	w.Line(12, "print('Warning: media_type property not found on image_settings, setting it anyway')")
	w.Line(12, "bpy.context.scene.render.image_settings.media_type = 'VIDEO'")
	w.Line(8, "is_video_configured = True")
	w.Line(4, "except Exception as e2:")
	w.Line(8, "print(f'Error: Could not configure video output: {e2}')")
	w.Line(8, "try:")
	w.Line(12, "formats = [i.identifier for i in bpy.context.scene.render.image_settings.bl_rna.properties['file_format'].enum_items]")
	w.Line(12, "print(f'Available formats: {formats}')")
	w.Line(8, "except Exception:")
	w.Line(12, "pass")
	w.Line(8, "raise e2")

	w.Line(0, "if is_video_configured:")
	w.Line(4, "try:")
	w.Line(8, "bpy.context.scene.render.ffmpeg.format = '%s'", ffmpegContainer(e.Container))
	w.Line(8, "bpy.context.scene.render.ffmpeg.codec = '%s'", ffmpegCodec(e.Codec))
	if e.BitrateMode == config.BitrateCBR {
		w.Line(8, "bpy.context.scene.render.ffmpeg.constant_rate_factor = 'NONE'")
		w.Line(8, "bpy.context.scene.render.ffmpeg.video_bitrate = %d", e.BitrateKbps)
		w.Line(8, "bpy.context.scene.render.ffmpeg.minrate = %d", e.BitrateKbps)
		w.Line(8, "bpy.context.scene.render.ffmpeg.maxrate = %d", e.BitrateKbps)
	} else {
		w.Line(8, "bpy.context.scene.render.ffmpeg.constant_rate_factor = 'MEDIUM'")
		w.Line(8, "bpy.context.scene.render.ffmpeg.video_bitrate = %d", e.BitrateKbps)
	}
	w.Line(8, "bpy.context.scene.render.ffmpeg.gopsize = %d", e.GopSize)
	w.Line(8, "bpy.context.scene.render.ffmpeg.ffmpeg_preset = 'GOOD'")
	w.Line(4, "except Exception as e_ffmpeg:")
	// engine defaults usually still produce a playable file
	w.Line(8, "print(f'Error setting FFMPEG parameters: {e_ffmpeg}')")
	w.Line(0, "print(f'Output format: {bpy.context.scene.render.image_settings.file_format}')")
	w.Line(0, "print(f'Output path: {bpy.context.scene.render.filepath}')")
}
