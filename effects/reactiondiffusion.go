package effects

import (
	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/kernels"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/source"
)

// SlotConcentrations holds (a, b) for the Gray-Scott model.
const SlotConcentrations = "concentrations"

// ReactionDiffusion steps a Gray-Scott field several times per tick and
// displays one of the two-species modes.
type ReactionDiffusion struct {
	kernel kernels.GrayScott
	steps  int
	seed   pipeline.SlotSpec
	comp   compositor.Compositor
}

// NewReactionDiffusion builds the program from reaction_diffusion.*.
func NewReactionDiffusion(cfg *config.Config) (pipeline.Program, error) {
	rd := cfg.ReactionDiffusion
	e, err := edge(cfg, rd.Edge)
	if err != nil {
		return nil, err
	}
	st, err := kernels.ParseStencil(rd.Stencil)
	if err != nil {
		return nil, err
	}
	comp, err := display(cfg, compositor.ModeDifference,
		compositor.ModeChannelA, compositor.ModeChannelB, compositor.ModeThreshold, compositor.ModeHue)
	if err != nil {
		return nil, err
	}

	return &ReactionDiffusion{
		kernel: kernels.GrayScott{
			DiffusionA: rd.DiffusionA,
			DiffusionB: rd.DiffusionB,
			Feed:       rd.Feed,
			Kill:       rd.Kill,
			DT:         rd.DT,
			Edge:       e,
			Stencil:    st,
			Clamp:      rd.Clamp,
		},
		steps: max(rd.StepsPerTick, 1),
		seed: pipeline.SlotSpec{
			Name:     SlotConcentrations,
			Channels: 2,
			Depth:    2,
			Init:     source.NoiseSeed(rd.Seed, rd.SeedScale, rd.SeedCoverage),
		},
		comp: comp,
	}, nil
}

func (r *ReactionDiffusion) Name() string { return "reaction-diffusion" }

func (r *ReactionDiffusion) SlotSpecs() []pipeline.SlotSpec {
	return []pipeline.SlotSpec{r.seed}
}

func (r *ReactionDiffusion) Plan(_ pipeline.Params, _ pipeline.State) (pipeline.Plan, error) {
	step := pass.Descriptor{
		Kernel: r.kernel,
		Reads:  []pass.Read{{Slot: SlotConcentrations}},
		Writes: SlotConcentrations,
	}
	passes := make([]pass.Descriptor, r.steps)
	for i := range passes {
		passes[i] = step
	}

	comp := r.comp
	return pipeline.Plan{
		Passes: passes,
		Composite: pass.CompositeDescriptor{
			Compositor: &comp,
			Reads:      []pass.Read{{Slot: SlotConcentrations}},
		},
	}, nil
}
