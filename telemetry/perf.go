package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Stage kinds, in the order a pipeline tick runs them.
const (
	StageSource    = "source"
	StagePass      = "pass"
	StageComposite = "composite"
	StagePresent   = "present"
)

// StageKey identifies one timed unit of a tick: a source slot, a pass by
// its descriptor name, the composite by its display mode, or the sinks.
type StageKey struct {
	Kind string
	Name string
}

func (k StageKey) String() string {
	if k.Name == "" {
		return k.Kind
	}
	return k.Kind + "/" + k.Name
}

// tickTiming is one recorded tick. A stage that runs several times in a
// tick (a pass repeated steps_per_tick times) accumulates into one entry.
type tickTiming struct {
	total   time.Duration
	aborted bool
	stages  map[StageKey]time.Duration
}

// PerfCollector keeps the stage timings of the last N ticks. It is driven
// from the goroutine that ticks the pipeline and is not safe for concurrent
// use.
type PerfCollector struct {
	ring  []tickTiming
	next  int
	count int

	cur     tickTiming
	started time.Time
	order   []StageKey

	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector keeps a rolling window of window ticks (60 if < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		ring: make([]tickTiming, window),
		cur:  tickTiming{stages: make(map[StageKey]time.Duration)},
	}
}

// StartTick opens a new tick sample.
func (p *PerfCollector) StartTick() {
	if p == nil {
		return
	}
	p.started = time.Now()
	p.cur = tickTiming{stages: make(map[StageKey]time.Duration)}
}

// Track starts timing a stage and returns the function that stops it.
// Calling Track on a nil collector is a no-op.
func (p *PerfCollector) Track(kind, name string) func() {
	if p == nil {
		return func() {}
	}
	key := StageKey{Kind: kind, Name: name}
	start := time.Now()
	return func() {
		if _, seen := p.cur.stages[key]; !seen && !slices.Contains(p.order, key) {
			p.order = append(p.order, key)
		}
		p.cur.stages[key] += time.Since(start)
	}
}

// EndTick closes the tick sample; err marks it aborted.
func (p *PerfCollector) EndTick(err error) {
	if p == nil {
		return
	}
	p.cur.total = time.Since(p.started)
	p.cur.aborted = err != nil
	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	p.count = min(p.count+1, len(p.ring))
}

// RecordFrame measures the interval between presented frames in graphics
// mode.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// StageStats aggregates one stage over the window.
type StageStats struct {
	Key StageKey
	// Ticks is how many ticks in the window ran the stage.
	Ticks int
	Avg   time.Duration // per tick that ran it
	Max   time.Duration
	// Pct is the stage's share of all tick time in the window.
	Pct float64
}

// PerfStats summarises the window.
type PerfStats struct {
	Ticks   int
	Aborted int

	AvgTick time.Duration
	P95Tick time.Duration
	MaxTick time.Duration

	TicksPerSecond float64

	FrameDuration time.Duration
	FPS           float64

	// Stages in first-seen order.
	Stages []StageStats
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Ticks: p.count, FrameDuration: p.frame}
	if p.frame > 0 {
		s.FPS = float64(time.Second) / float64(p.frame)
	}
	if p.count == 0 {
		return s
	}

	totals := make([]float64, 0, p.count)
	var sum time.Duration
	for _, t := range p.ring[:p.count] {
		totals = append(totals, float64(t.total))
		sum += t.total
		if t.aborted {
			s.Aborted++
		}
	}
	slices.Sort(totals)
	s.AvgTick = sum / time.Duration(p.count)
	s.P95Tick = time.Duration(stat.Quantile(0.95, stat.Empirical, totals, nil))
	s.MaxTick = time.Duration(totals[len(totals)-1])
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}

	for _, key := range p.order {
		st := StageStats{Key: key}
		var stageSum time.Duration
		for _, t := range p.ring[:p.count] {
			d, ok := t.stages[key]
			if !ok {
				continue
			}
			st.Ticks++
			stageSum += d
			st.Max = max(st.Max, d)
		}
		if st.Ticks == 0 {
			continue
		}
		st.Avg = stageSum / time.Duration(st.Ticks)
		if sum > 0 {
			st.Pct = float64(stageSum) / float64(sum) * 100
		}
		s.Stages = append(s.Stages, st)
	}
	return s
}

// Stage looks up one stage's statistics.
func (s PerfStats) Stage(kind, name string) (StageStats, bool) {
	for _, st := range s.Stages {
		if st.Key == (StageKey{Kind: kind, Name: name}) {
			return st, true
		}
	}
	return StageStats{}, false
}

// KindPct sums the share of every stage of one kind.
func (s PerfStats) KindPct(kind string) float64 {
	var pct float64
	for _, st := range s.Stages {
		if st.Key.Kind == kind {
			pct += st.Pct
		}
	}
	return pct
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("p95_tick_us", s.P95Tick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
	}
	if s.Aborted > 0 {
		attrs = append(attrs, slog.Int("aborted", s.Aborted))
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for _, st := range s.Stages {
		if st.Pct < 0.1 {
			continue
		}
		attrs = append(attrs, slog.Float64(st.Key.String()+"_pct", float64(int(st.Pct*10))/10))
	}
	return slog.GroupValue(attrs...)
}

// LogStats writes the window summary at info level.
func (s PerfStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("perf", "stats", s)
}

// PerfStatsCSV is one perf.csv row. Each window writes a "tick" row for
// the whole tick followed by one row per stage.
type PerfStatsCSV struct {
	WindowEnd uint64  `csv:"window_end"`
	Stage     string  `csv:"stage"`
	Name      string  `csv:"name"`
	Ticks     int     `csv:"ticks"`
	Aborted   int     `csv:"aborted"`
	AvgUS     int64   `csv:"avg_us"`
	MaxUS     int64   `csv:"max_us"`
	Pct       float64 `csv:"pct"`
}

// ToCSV flattens the window into perf.csv rows.
func (s PerfStats) ToCSV(windowEnd uint64) []PerfStatsCSV {
	rows := make([]PerfStatsCSV, 0, len(s.Stages)+1)
	rows = append(rows, PerfStatsCSV{
		WindowEnd: windowEnd,
		Stage:     "tick",
		Ticks:     s.Ticks,
		Aborted:   s.Aborted,
		AvgUS:     s.AvgTick.Microseconds(),
		MaxUS:     s.MaxTick.Microseconds(),
		Pct:       100,
	})
	for _, st := range s.Stages {
		rows = append(rows, PerfStatsCSV{
			WindowEnd: windowEnd,
			Stage:     st.Key.Kind,
			Name:      st.Key.Name,
			Ticks:     st.Ticks,
			AvgUS:     st.Avg.Microseconds(),
			MaxUS:     st.Max.Microseconds(),
			Pct:       st.Pct,
		})
	}
	return rows
}
