package script

import (
	"sync"

	"github.com/ivlev/scene2video/internal/scene"
)

// EmitContext is what a modifier emitter knows about its surroundings.
// The imported object is bound to the Python name obj.
type EmitContext struct {
	Indent   int
	FrameEnd int
	FPS      int
}

// Emitter writes the statements for one modifier.
type Emitter func(w *Writer, ctx EmitContext, m scene.Modifier)

// Registry maps modifier kinds to their emitters. Kinds without an emitter
// are skipped.
type Registry struct {
	mu       sync.RWMutex
	emitters map[scene.ModifierKind]Emitter
}

var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	r := &Registry{emitters: make(map[scene.ModifierKind]Emitter)}
	r.Register(scene.ModifierAutoRotate, emitAutoRotate)
	return r
}

func (r *Registry) Register(kind scene.ModifierKind, fn Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitters[kind] = fn
}

func (r *Registry) emit(w *Writer, ctx EmitContext, m scene.Modifier) {
	r.mu.RLock()
	fn, ok := r.emitters[m.Kind]
	r.mu.RUnlock()
	if ok {
		fn(w, ctx, m)
	}
}

// emitAutoRotate keys one rotation per frame in [0, FrameEnd], relative to
// the rotation the object had after its transform was applied.
func emitAutoRotate(w *Writer, ctx EmitContext, m scene.Modifier) {
	rot := m.AutoRotate
	if rot == nil {
		return
	}
	fps := ctx.FPS
	if fps <= 0 {
		fps = 30
	}
	axis := rot.Axis.Index()
	in := ctx.Indent

	w.Line(in, "# Auto Rotate Modifier")
	w.Line(in, "obj.animation_data_create()")
	w.Line(in, "if obj.animation_data.action is None:")
	w.Line(in+4, "obj.animation_data.action = bpy.data.actions.new(name='RotationAction')")
	w.Line(in, "start_angle = obj.rotation_euler[%d]", axis)
	for f := 0; f <= ctx.FrameEnd; f++ {
		t := float64(f) / float64(fps)
		angle := radians(t * rot.Speed)
		w.Line(in, "obj.rotation_euler[%d] = start_angle + %s", axis, num(angle))
		w.Line(in, "obj.keyframe_insert(data_path='rotation_euler', index=%d, frame=%d)", axis, f)
	}
}
