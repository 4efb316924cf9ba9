package player

// flushTelemetry logs and writes perf and field statistics on their
// configured tick intervals.
func (p *Player) flushTelemetry() {
	tc := p.cfg.Telemetry

	if tc.LogInterval > 0 && p.frames%uint64(tc.LogInterval) == 0 {
		stats := p.perf.Stats()
		if p.logStats {
			stats.LogStats(p.logger)
		}
		if p.output != nil {
			if err := p.output.WritePerf(stats, p.frames); err != nil {
				p.logger.Error("failed to write perf", "error", err)
			}
		}
	}

	if tc.FieldStatsInterval > 0 && p.frames%uint64(tc.FieldStatsInterval) == 0 {
		p.sampleFields()
	}
}

// sampleFields records per-channel statistics of every slot's current Field.
func (p *Player) sampleFields() {
	for _, name := range p.pipe.SlotNames() {
		v, err := p.pipe.CurrentOf(name)
		if err != nil {
			continue
		}
		records := p.sampler.Sample(p.frames, name, v)
		if p.logStats {
			for _, r := range records {
				p.logger.Info("field", "stats", r)
			}
		}
		if p.output != nil {
			if err := p.output.WriteFieldStats(records); err != nil {
				p.logger.Error("failed to write field stats", "error", err)
			}
		}
	}
}
