package effects

import (
	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/kernels"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/source"
)

// Physarum slots.
const (
	SlotTrail   = "trail"
	SlotDeposit = "deposit"
)

// Physarum runs an agent population over a decaying trail. Agents sense the
// previous trail and deposit into a separate slot; the decay pass blurs the
// trail and adds the deposits.
type Physarum struct {
	agents *source.Agents
	decay  kernels.Decay
	comp   compositor.Compositor
}

// NewPhysarum builds the program from physarum.*.
func NewPhysarum(cfg *config.Config) (pipeline.Program, error) {
	pc := cfg.Physarum
	e, err := edge(cfg, pc.Edge)
	if err != nil {
		return nil, err
	}
	blur, err := kernels.ParseBlur(pc.Blur)
	if err != nil {
		return nil, err
	}
	comp, err := display(cfg, compositor.ModeChannelA, compositor.ModeColor)
	if err != nil {
		return nil, err
	}

	return &Physarum{
		agents: source.NewAgents(SlotTrail, source.AgentConfig{
			Count:          pc.Agents,
			SensorAngle:    pc.SensorAngle,
			SensorDistance: pc.SensorDistance,
			TurnAngle:      pc.TurnAngle,
			StepSize:       pc.StepSize,
			Deposit:        pc.Deposit,
			Seed:           pc.Seed,
		}),
		decay: kernels.Decay{Blur: blur, Decay: pc.Decay, Edge: e},
		comp:  comp,
	}, nil
}

func (p *Physarum) Name() string { return "physarum" }

func (p *Physarum) SlotSpecs() []pipeline.SlotSpec {
	return []pipeline.SlotSpec{
		{Name: SlotTrail, Channels: 1, Depth: 2},
		{Name: SlotDeposit, Channels: 1, Depth: 1, Source: p.agents},
	}
}

func (p *Physarum) Plan(_ pipeline.Params, _ pipeline.State) (pipeline.Plan, error) {
	comp := p.comp
	return pipeline.Plan{
		Passes: []pass.Descriptor{{
			Kernel: p.decay,
			Reads:  []pass.Read{{Slot: SlotTrail}, {Slot: SlotDeposit}},
			Writes: SlotTrail,
		}},
		Composite: pass.CompositeDescriptor{
			Compositor: &comp,
			Reads:      []pass.Read{{Slot: SlotTrail}},
		},
	}, nil
}
