// Package config provides configuration loading and access for the effect pipeline.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all pipeline and effect parameters.
type Config struct {
	Screen            ScreenConfig            `yaml:"screen"`
	Field             FieldConfig             `yaml:"field"`
	Pipeline          PipelineConfig          `yaml:"pipeline"`
	Effect            EffectConfig            `yaml:"effect"`
	ReactionDiffusion ReactionDiffusionConfig `yaml:"reaction_diffusion"`
	Physarum          PhysarumConfig          `yaml:"physarum"`
	Video             VideoConfig             `yaml:"video"`
	Kaleidoscope      KaleidoscopeConfig      `yaml:"kaleidoscope"`
	Lattice           LatticeConfig           `yaml:"lattice"`
	Edges             EdgesConfig             `yaml:"edges"`
	Telemetry         TelemetryConfig         `yaml:"telemetry"`
	Stream            StreamConfig            `yaml:"stream"`
	Snapshot          SnapshotConfig          `yaml:"snapshot"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// FieldConfig holds simulation grid settings.
// Width/Height of 0 follow the screen size.
type FieldConfig struct {
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	MemoryBudgetMB int    `yaml:"memory_budget_mb"` // 0 = unlimited
	Edge           string `yaml:"edge"`             // default edge policy: wrap, clamp, zero
}

// PipelineConfig holds scheduler settings.
type PipelineConfig struct {
	Workers           int `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int `yaml:"parallel_threshold"` // texels below which passes run inline
	PassTimeoutMS     int `yaml:"pass_timeout_ms"`    // 0 = no timeout
}

// EffectConfig selects the program and its display.
type EffectConfig struct {
	Name        string `yaml:"name"`
	DisplayMode string `yaml:"display_mode"` // empty = effect default
	Invert      bool   `yaml:"invert"`
	FlipY       bool   `yaml:"flip_y"`
}

// ReactionDiffusionConfig holds Gray-Scott parameters.
type ReactionDiffusionConfig struct {
	DiffusionA   float64 `yaml:"diffusion_a"`
	DiffusionB   float64 `yaml:"diffusion_b"`
	Feed         float64 `yaml:"feed"`
	Kill         float64 `yaml:"kill"`
	DT           float64 `yaml:"dt"`
	StepsPerTick int     `yaml:"steps_per_tick"`
	Stencil      string  `yaml:"stencil"` // nine, five
	Edge         string  `yaml:"edge"`    // empty = field.edge
	Clamp        bool    `yaml:"clamp"`
	Seed         int64   `yaml:"seed"`
	SeedScale    float64 `yaml:"seed_scale"`    // noise frequency for the initial b
	SeedCoverage float64 `yaml:"seed_coverage"` // fraction of the field seeded with b
}

// PhysarumConfig holds trail and agent parameters.
type PhysarumConfig struct {
	Agents         int     `yaml:"agents"`
	SensorAngle    float64 `yaml:"sensor_angle"`    // radians
	SensorDistance float64 `yaml:"sensor_distance"` // texels
	TurnAngle      float64 `yaml:"turn_angle"`      // radians
	StepSize       float64 `yaml:"step_size"`       // texels per tick
	Deposit        float64 `yaml:"deposit"`
	Decay          float64 `yaml:"decay"`
	Blur           string  `yaml:"blur"` // box, weighted
	Edge           string  `yaml:"edge"`
	Seed           int64   `yaml:"seed"`
}

// VideoConfig holds the synthetic frame source and delay compositor settings.
type VideoConfig struct {
	Delays        []int     `yaml:"delays"`
	NoiseScale    float64   `yaml:"noise_scale"`
	NoiseSpeed    float64   `yaml:"noise_speed"`
	Seed          int64     `yaml:"seed"`
	Mode          string    `yaml:"mode"` // interleave, motion, motion-masked, color
	MotionWeights []float64 `yaml:"motion_weights"`
	MotionGain    float64   `yaml:"motion_gain"`
	Spotlight     bool      `yaml:"spotlight"`
}

// KaleidoscopeConfig holds the fold parameters.
type KaleidoscopeConfig struct {
	Blades     float64 `yaml:"blades"`
	Rotate     bool    `yaml:"rotate"`
	Interleave bool    `yaml:"interleave"` // per-channel delays from video.delays
	Edge       string  `yaml:"edge"`
}

// LatticeConfig holds integer-circle parameters. E of 0 selects 4·sin²(π/9).
type LatticeConfig struct {
	D        float64 `yaml:"d"`
	E        float64 `yaml:"e"`
	Ceiling  int     `yaml:"ceiling"`
	Centered bool    `yaml:"centered"` // false offsets by -resolution
}

// EdgesConfig holds edge-detection settings.
type EdgesConfig struct {
	Delays []int  `yaml:"delays"`
	Merge  bool   `yaml:"merge"`
	Edge   string `yaml:"edge"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfCollectorWindow int    `yaml:"perf_collector_window"`
	LogInterval         int    `yaml:"log_interval"`         // ticks between perf log lines
	FieldStatsInterval  int    `yaml:"field_stats_interval"` // ticks between fields.csv rows, 0 = off
	OutputDir           string `yaml:"output_dir"`
}

// StreamConfig holds the websocket sink. Empty Addr disables it.
type StreamConfig struct {
	Addr  string `yaml:"addr"`
	Path  string `yaml:"path"`
	Every int    `yaml:"every"` // broadcast every Nth tick
}

// SnapshotConfig holds PNG export settings. Empty Dir disables it.
type SnapshotConfig struct {
	Dir   string  `yaml:"dir"`
	Every int     `yaml:"every"`
	Scale float64 `yaml:"scale"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FieldWidth   int           // Field.Width, or Screen.Width when 0
	FieldHeight  int           // Field.Height, or Screen.Height when 0
	MemoryBudget int64         // bytes, 0 = unlimited
	PassTimeout  time.Duration // Pipeline.PassTimeoutMS
	MaxDelay     int           // largest frame delay any effect reads
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects values no effect can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		errs = append(errs, fmt.Errorf("screen: size %dx%d must be positive", c.Screen.Width, c.Screen.Height))
	}
	if c.Field.Width < 0 || c.Field.Height < 0 {
		errs = append(errs, fmt.Errorf("field: size %dx%d must not be negative", c.Field.Width, c.Field.Height))
	}
	if c.ReactionDiffusion.StepsPerTick < 1 {
		errs = append(errs, errors.New("reaction_diffusion: steps_per_tick must be at least 1"))
	}
	for _, d := range append(slices.Clone(c.Video.Delays), c.Edges.Delays...) {
		if d < 0 {
			errs = append(errs, fmt.Errorf("delays: %d is negative", d))
		}
	}
	if c.Lattice.Ceiling < 1 {
		errs = append(errs, errors.New("lattice: ceiling must be at least 1"))
	}
	if c.Kaleidoscope.Blades < 0 {
		errs = append(errs, errors.New("kaleidoscope: blades must not be negative"))
	}
	if c.Physarum.Agents < 0 {
		errs = append(errs, errors.New("physarum: agents must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.FieldWidth = c.Field.Width
	if c.Derived.FieldWidth == 0 {
		c.Derived.FieldWidth = c.Screen.Width
	}
	c.Derived.FieldHeight = c.Field.Height
	if c.Derived.FieldHeight == 0 {
		c.Derived.FieldHeight = c.Screen.Height
	}
	c.Derived.MemoryBudget = int64(c.Field.MemoryBudgetMB) << 20
	c.Derived.PassTimeout = time.Duration(c.Pipeline.PassTimeoutMS) * time.Millisecond

	c.Derived.MaxDelay = 0
	for _, d := range c.Video.Delays {
		c.Derived.MaxDelay = max(c.Derived.MaxDelay, d)
	}
	for _, d := range c.Edges.Delays {
		c.Derived.MaxDelay = max(c.Derived.MaxDelay, d)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
