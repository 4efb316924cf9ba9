package effects

import (
	"fmt"

	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/kernels"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/source"
)

// Video slots.
const (
	SlotFrames = "frames"
	SlotEdges  = "edges"
)

// frameSlot is the ring of recent camera frames, deep enough for every delay.
func frameSlot(cfg *config.Config, delays []int) pipeline.SlotSpec {
	v := cfg.Video
	return pipeline.SlotSpec{
		Name:     SlotFrames,
		Channels: 4,
		Depth:    historyDepth(delays),
		Source:   source.NewNoiseVideo(v.Seed, v.NoiseScale, v.NoiseSpeed),
	}
}

// delayReads binds the frame ring at each delay. Reads clamp to the oldest
// retained frame until the ring has filled, including after a resize.
func delayReads(delays []int) []pass.Read {
	reads := make([]pass.Read, len(delays))
	for i, d := range delays {
		reads[i] = pass.Read{Slot: SlotFrames, Offset: d, Clamp: true}
	}
	return reads
}

func needDelays(effect string, delays []int, n int) error {
	if len(delays) < n {
		return fmt.Errorf("effects: %s needs %d delays, got %v", effect, n, delays)
	}
	return nil
}

// VideoDelay composites the frame ring directly: channel interleave across
// delays, motion extraction or plain colour.
type VideoDelay struct {
	frames pipeline.SlotSpec
	reads  []pass.Read
	comp   compositor.Compositor
}

// NewVideoDelay builds the program from video.*.
func NewVideoDelay(cfg *config.Config) (pipeline.Program, error) {
	v := cfg.Video
	def, err := compositor.ParseMode(v.Mode)
	if err != nil {
		return nil, err
	}
	allowed := []compositor.Mode{compositor.ModeInterleave, compositor.ModeMotion, compositor.ModeMotionMasked, compositor.ModeColor}
	comp, err := display(cfg, def, allowed...)
	if err != nil {
		return nil, err
	}
	supported := false
	for _, m := range allowed {
		supported = supported || m == comp.Mode
	}
	if !supported {
		return nil, fmt.Errorf("%w: video-delay cannot display %s", compositor.ErrInvalidMode, comp.Mode)
	}

	delays := v.Delays
	switch comp.Mode {
	case compositor.ModeInterleave:
		if err := needDelays("interleave", delays, 3); err != nil {
			return nil, err
		}
		delays = delays[:3]
	case compositor.ModeMotion, compositor.ModeMotionMasked:
		if err := needDelays("motion", delays, 2); err != nil {
			return nil, err
		}
	default:
		if err := needDelays("video", delays, 1); err != nil {
			return nil, err
		}
		delays = delays[:1]
	}

	comp.MotionWeights = v.MotionWeights
	comp.MotionGain = v.MotionGain
	comp.Spotlight = v.Spotlight

	return &VideoDelay{
		frames: frameSlot(cfg, delays),
		reads:  delayReads(delays),
		comp:   comp,
	}, nil
}

func (v *VideoDelay) Name() string { return "video-delay" }

func (v *VideoDelay) SlotSpecs() []pipeline.SlotSpec { return []pipeline.SlotSpec{v.frames} }

func (v *VideoDelay) Plan(p pipeline.Params, _ pipeline.State) (pipeline.Plan, error) {
	comp := v.comp
	comp.Time = p.Time
	comp.MouseX, comp.MouseY = p.MouseX, p.MouseY
	return pipeline.Plan{
		Composite: pass.CompositeDescriptor{Compositor: &comp, Reads: v.reads},
	}, nil
}

// Kaleidoscope folds the live frame, or three delayed frames mixed per
// channel, into mirrored wedges.
type Kaleidoscope struct {
	frames pipeline.SlotSpec
	reads  []pass.Read
	comp   compositor.Compositor
}

// NewKaleidoscope builds the program from kaleidoscope.* and video.*.
func NewKaleidoscope(cfg *config.Config) (pipeline.Program, error) {
	kc := cfg.Kaleidoscope
	e, err := edge(cfg, kc.Edge)
	if err != nil {
		return nil, err
	}

	mode := compositor.ModeKaleidoscope
	delays := []int{0}
	if kc.Interleave {
		mode = compositor.ModeKaleidoscopeInterleave
		if err := needDelays("kaleidoscope interleave", cfg.Video.Delays, 3); err != nil {
			return nil, err
		}
		delays = cfg.Video.Delays[:3]
	}

	comp := compositor.Compositor{
		Mode:   mode,
		Edge:   e,
		Blades: kc.Blades,
		Rotate: kc.Rotate,
	}
	if err := comp.Validate(); err != nil {
		return nil, err
	}

	return &Kaleidoscope{
		frames: frameSlot(cfg, delays),
		reads:  delayReads(delays),
		comp:   comp,
	}, nil
}

func (k *Kaleidoscope) Name() string { return "kaleidoscope" }

func (k *Kaleidoscope) SlotSpecs() []pipeline.SlotSpec { return []pipeline.SlotSpec{k.frames} }

func (k *Kaleidoscope) Plan(p pipeline.Params, _ pipeline.State) (pipeline.Plan, error) {
	comp := k.comp
	comp.Time = p.Time
	return pipeline.Plan{
		Composite: pass.CompositeDescriptor{Compositor: &comp, Reads: k.reads},
	}, nil
}

// Edges runs edge detection over the frame ring, merging three delays into
// separate colour channels when configured.
type Edges struct {
	frames pipeline.SlotSpec
	kernel kernels.EdgeDetect
	reads  []pass.Read
	comp   compositor.Compositor
}

// NewEdges builds the program from edges.*.
func NewEdges(cfg *config.Config) (pipeline.Program, error) {
	ec := cfg.Edges
	e, err := edge(cfg, ec.Edge)
	if err != nil {
		return nil, err
	}
	comp, err := display(cfg, compositor.ModeColor)
	if err != nil {
		return nil, err
	}

	delays := ec.Delays
	if ec.Merge {
		if err := needDelays("merged edges", delays, 3); err != nil {
			return nil, err
		}
		delays = delays[:3]
	} else {
		if err := needDelays("edges", delays, 1); err != nil {
			return nil, err
		}
		delays = delays[:1]
	}

	return &Edges{
		frames: frameSlot(cfg, delays),
		kernel: kernels.EdgeDetect{Edge: e, Merge: ec.Merge},
		reads:  delayReads(delays),
		comp:   comp,
	}, nil
}

func (g *Edges) Name() string { return "edges" }

func (g *Edges) SlotSpecs() []pipeline.SlotSpec {
	return []pipeline.SlotSpec{
		g.frames,
		{Name: SlotEdges, Channels: 4, Depth: 1},
	}
}

func (g *Edges) Plan(_ pipeline.Params, _ pipeline.State) (pipeline.Plan, error) {
	comp := g.comp
	return pipeline.Plan{
		Passes: []pass.Descriptor{{Kernel: g.kernel, Reads: g.reads, Writes: SlotEdges}},
		Composite: pass.CompositeDescriptor{
			Compositor: &comp,
			Reads:      []pass.Read{{Slot: SlotEdges}},
		},
	}, nil
}
