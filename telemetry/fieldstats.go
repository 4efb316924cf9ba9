package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/fieldfx/field"
)

// FieldStats summarises one channel of a slot's current Field.
type FieldStats struct {
	Tick    uint64  `csv:"tick"`
	Slot    string  `csv:"slot"`
	Channel int     `csv:"channel"`
	Sum     float64 `csv:"sum"`
	Mean    float64 `csv:"mean"`
	StdDev  float64 `csv:"stddev"`
	Min     float64 `csv:"min"`
	Max     float64 `csv:"max"`
}

// FieldSampler computes per-channel statistics, reusing its scratch buffer
// between calls.
type FieldSampler struct {
	scratch []float64
}

// Sample returns one FieldStats per channel of v.
func (s *FieldSampler) Sample(tick uint64, slot string, v field.View) []FieldStats {
	if !v.Valid() {
		return nil
	}
	out := make([]FieldStats, 0, v.Channels())
	for c := 0; c < v.Channels(); c++ {
		s.scratch = v.Channel(c, s.scratch[:0])
		mean, std := stat.MeanStdDev(s.scratch, nil)
		out = append(out, FieldStats{
			Tick:    tick,
			Slot:    slot,
			Channel: c,
			Sum:     floats.Sum(s.scratch),
			Mean:    mean,
			StdDev:  std,
			Min:     floats.Min(s.scratch),
			Max:     floats.Max(s.scratch),
		})
	}
	return out
}

// LogValue implements slog.LogValuer.
func (f FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("slot", f.Slot),
		slog.Int("channel", f.Channel),
		slog.Float64("mean", f.Mean),
		slog.Float64("stddev", f.StdDev),
		slog.Float64("min", f.Min),
		slog.Float64("max", f.Max),
	)
}
