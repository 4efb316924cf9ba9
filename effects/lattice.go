package effects

import (
	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/kernels"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/pipeline"
)

// SlotCounts holds per-pixel lattice return counts.
const SlotCounts = "counts"

// IntegerCircles evaluates the lattice iteration count once per extent and
// displays it log-scaled. The counts never change between ticks, so the
// pass only runs on the first tick after initialisation or a resize.
type IntegerCircles struct {
	lattice  kernels.Lattice
	centered bool
	comp     compositor.Compositor
}

// NewIntegerCircles builds the program from lattice.*.
func NewIntegerCircles(cfg *config.Config) (pipeline.Program, error) {
	lc := cfg.Lattice
	comp, err := display(cfg, compositor.ModeLogCount, compositor.ModeChannelA)
	if err != nil {
		return nil, err
	}
	comp.Ceiling = lc.Ceiling
	return &IntegerCircles{
		lattice:  kernels.Lattice{D: lc.D, E: lc.E, Ceiling: lc.Ceiling},
		centered: lc.Centered,
		comp:     comp,
	}, nil
}

func (c *IntegerCircles) Name() string { return "integer-circles" }

func (c *IntegerCircles) SlotSpecs() []pipeline.SlotSpec {
	return []pipeline.SlotSpec{{Name: SlotCounts, Channels: 1, Depth: 1}}
}

func (c *IntegerCircles) Plan(_ pipeline.Params, s pipeline.State) (pipeline.Plan, error) {
	var passes []pass.Descriptor
	if s.Tick == 0 {
		k := c.lattice
		if c.centered {
			k.OriginX, k.OriginY = -s.Width/2, -s.Height/2
		} else {
			k.OriginX, k.OriginY = -s.Width, -s.Height
		}
		passes = append(passes, pass.Descriptor{Kernel: k, Writes: SlotCounts})
	}

	comp := c.comp
	return pipeline.Plan{
		Passes: passes,
		Composite: pass.CompositeDescriptor{
			Compositor: &comp,
			Reads:      []pass.Read{{Slot: SlotCounts}},
		},
	}, nil
}
