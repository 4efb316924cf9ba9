// Package effects builds the runnable pipeline programs from configuration.
package effects

import (
	"fmt"
	"sort"

	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pipeline"
)

// Constructor builds a program from configuration.
type Constructor func(cfg *config.Config) (pipeline.Program, error)

var registry = map[string]Constructor{
	"reaction-diffusion": NewReactionDiffusion,
	"physarum":           NewPhysarum,
	"video-delay":        NewVideoDelay,
	"kaleidoscope":       NewKaleidoscope,
	"integer-circles":    NewIntegerCircles,
	"edges":              NewEdges,
}

// New builds the named effect.
func New(name string, cfg *config.Config) (pipeline.Program, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("effects: unknown effect %q (have %v)", name, Names())
	}
	return ctor(cfg)
}

// Names lists the registered effects in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// edge parses an effect's edge policy, falling back to field.edge.
func edge(cfg *config.Config, s string) (field.Edge, error) {
	if s == "" {
		s = cfg.Field.Edge
	}
	return field.ParseEdge(s)
}

// display builds the effect's compositor. effect.display_mode overrides
// def when set; allowed restricts the modes that make sense for the
// effect's slots.
func display(cfg *config.Config, def compositor.Mode, allowed ...compositor.Mode) (compositor.Compositor, error) {
	mode := def
	if cfg.Effect.DisplayMode != "" {
		m, err := compositor.ParseMode(cfg.Effect.DisplayMode)
		if err != nil {
			return compositor.Compositor{}, err
		}
		mode = m
	}
	if len(allowed) > 0 && mode != def {
		ok := false
		for _, a := range allowed {
			ok = ok || a == mode
		}
		if !ok {
			return compositor.Compositor{}, fmt.Errorf("%w: %s not supported here", compositor.ErrInvalidMode, mode)
		}
	}
	return compositor.Compositor{Mode: mode, Invert: cfg.Effect.Invert}, nil
}

// historyDepth is the slot depth needed to read every delay.
func historyDepth(delays []int) int {
	depth := 1
	for _, d := range delays {
		depth = max(depth, d+1)
	}
	return depth
}
