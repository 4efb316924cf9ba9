package source

import (
	"context"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pipeline"
)

// Position is an agent's location in texels.
type Position struct {
	X, Y float64
}

// Heading is an agent's direction in radians.
type Heading struct {
	Angle float64
}

// AgentConfig holds the sense/turn/move/deposit parameters.
type AgentConfig struct {
	Count          int
	SensorAngle    float64
	SensorDistance float64
	TurnAngle      float64
	StepSize       float64
	Deposit        float64
	Seed           int64
}

// Agents is a physarum population. Each tick it senses the current trail
// slot, steers, moves and writes its deposits into a fresh Field. Agents
// are respawned whenever the field extent changes.
type Agents struct {
	cfg   AgentConfig
	trail string

	world  *ecs.World
	mapper *ecs.Map2[Position, Heading]
	filter *ecs.Filter2[Position, Heading]
	rng    *rand.Rand

	width, height int
}

// NewAgents creates a population that senses the named trail slot.
func NewAgents(trail string, cfg AgentConfig) *Agents {
	return &Agents{
		cfg:   cfg,
		trail: trail,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// spawn replaces the population with uniformly placed agents.
func (a *Agents) spawn(w, h int) {
	world := ecs.NewWorld()
	a.world = world
	a.mapper = ecs.NewMap2[Position, Heading](world)
	a.filter = ecs.NewFilter2[Position, Heading](world)
	a.width, a.height = w, h

	for i := 0; i < a.cfg.Count; i++ {
		pos := Position{X: a.rng.Float64() * float64(w), Y: a.rng.Float64() * float64(h)}
		hd := Heading{Angle: a.rng.Float64() * 2 * math.Pi}
		a.mapper.NewEntity(&pos, &hd)
	}
}

// Count returns the live agent count.
func (a *Agents) Count() int {
	if a.filter == nil {
		return 0
	}
	n := 0
	query := a.filter.Query()
	for query.Next() {
		n++
	}
	return n
}

// Fill implements pipeline.Source.
func (a *Agents) Fill(ctx context.Context, in pipeline.Inputs, dst *field.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, h := dst.Width(), dst.Height()
	if a.world == nil || w != a.width || h != a.height {
		a.spawn(w, h)
	}

	trail, err := in.Slots.CurrentOf(a.trail)
	if err != nil {
		return err
	}
	dst.Clear()

	deposit := float32(a.cfg.Deposit)
	query := a.filter.Query()
	for query.Next() {
		pos, hd := query.Get()
		a.steer(trail, pos, hd)

		pos.X = wrap(pos.X+math.Cos(hd.Angle)*a.cfg.StepSize, float64(w))
		pos.Y = wrap(pos.Y+math.Sin(hd.Angle)*a.cfg.StepSize, float64(h))

		dst.Texel(min(int(pos.X), w-1), min(int(pos.Y), h-1))[0] += deposit
	}
	return nil
}

// steer samples the trail ahead, left and right of the agent and turns
// towards the strongest reading.
func (a *Agents) steer(trail field.View, pos *Position, hd *Heading) {
	sense := func(offset float64) float32 {
		ang := hd.Angle + offset
		x := pos.X + math.Cos(ang)*a.cfg.SensorDistance
		y := pos.Y + math.Sin(ang)*a.cfg.SensorDistance
		return trail.Get(int(math.Floor(x)), int(math.Floor(y)), 0, field.EdgeWrap)
	}
	left := sense(-a.cfg.SensorAngle)
	centre := sense(0)
	right := sense(a.cfg.SensorAngle)

	switch {
	case centre > left && centre > right:
	case centre < left && centre < right:
		if a.rng.Intn(2) == 0 {
			hd.Angle -= a.cfg.TurnAngle
		} else {
			hd.Angle += a.cfg.TurnAngle
		}
	case left < right:
		hd.Angle += a.cfg.TurnAngle
	case right < left:
		hd.Angle -= a.cfg.TurnAngle
	}
}

func wrap(v, n float64) float64 {
	v = math.Mod(v, n)
	if v < 0 {
		v += n
	}
	return v
}
