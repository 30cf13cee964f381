package metrics

import (
	"sync"
	"sync/atomic"
)

// FleetSnapshot is the minimal engine state the fleet metrics adapter needs
// to sync domain instruments. The engine owns building this; the adapter has
// no dependency on engine internals.
type FleetSnapshot struct {
	LiveAgents        int
	ChampionCount     int
	ProbeErrors       uint64
	ComputeSavingsPct float64
	PrunesByPhase     map[string]int
}

// FleetMetricsAdapter registers the fleet's domain instruments against a
// Provider and syncs them from a FleetSnapshot. Unlike the event bus's
// generic published/dropped counters, these observe the lifecycle the
// engine actually manages: live agent count, champion set size, probe
// failures, and cumulative prunes by phase.
type FleetMetricsAdapter struct {
	liveAgentsGauge     Gauge
	championCountGauge  Gauge
	computeSavingsGauge Gauge
	probeErrorsCounter  Counter
	prunesCounter       Counter // labels: phase

	lastProbeErrors atomic.Uint64

	mu         sync.Mutex
	lastPrunes map[string]uint64
}

// NewFleetMetricsAdapter registers the fleet instruments against p. Returns
// nil if p is nil so callers can skip syncing outright when metrics are
// disabled.
func NewFleetMetricsAdapter(p Provider) *FleetMetricsAdapter {
	if p == nil {
		return nil
	}
	a := &FleetMetricsAdapter{lastPrunes: make(map[string]uint64)}
	a.liveAgentsGauge = p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{
		Namespace: "atrwac", Subsystem: "fleet", Name: "live_agents",
		Help: "Number of agents still live in the fleet",
	}})
	a.championCountGauge = p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{
		Namespace: "atrwac", Subsystem: "fleet", Name: "champion_count",
		Help: "Number of agents currently marked champion",
	}})
	a.computeSavingsGauge = p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{
		Namespace: "atrwac", Subsystem: "fleet", Name: "compute_savings_pct",
		Help: "Compute savings versus total known agents, percent",
	}})
	a.probeErrorsCounter = p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
		Namespace: "atrwac", Subsystem: "fleet", Name: "probe_errors_total",
		Help: "Total agent metrics-probe failures",
	}})
	a.prunesCounter = p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
		Namespace: "atrwac", Subsystem: "fleet", Name: "prunes_total",
		Help: "Total agents pruned, by phase", Labels: []string{"phase"},
	}})
	return a
}

// Sync updates every instrument from snap. The gauges are set directly;
// probe errors and prunes are cumulative totals the engine already tracks,
// so Sync increments each counter by the delta since the previous call
// rather than by the raw total.
func (a *FleetMetricsAdapter) Sync(snap FleetSnapshot) {
	if a == nil {
		return
	}
	a.liveAgentsGauge.Set(float64(snap.LiveAgents))
	a.championCountGauge.Set(float64(snap.ChampionCount))
	a.computeSavingsGauge.Set(snap.ComputeSavingsPct)

	if prev := a.lastProbeErrors.Swap(snap.ProbeErrors); snap.ProbeErrors > prev {
		a.probeErrorsCounter.Inc(float64(snap.ProbeErrors - prev))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for phase, count := range snap.PrunesByPhase {
		cur := uint64(count)
		if prev := a.lastPrunes[phase]; cur > prev {
			a.prunesCounter.Inc(float64(cur-prev), phase)
			a.lastPrunes[phase] = cur
		}
	}
}
