package policy

// Telemetry policy centralizes runtime-tunable knobs so they can be swapped
// atomically (callers hold an immutable snapshot pointer) without locks on
// the hot evaluation path. All durations are expected to be positive; zero
// values fall back to defaults established in Default().

import "time"

type TelemetryPolicy struct {
	Health  HealthPolicy
	Tracing TracingPolicy
	Events  EventBusPolicy
}

// HealthPolicy tunes the thresholds the engine's health probes use to
// classify the metrics probe's error rate and the resource ledger's
// agent-count drift as healthy, degraded, or unhealthy.
type HealthPolicy struct {
	ProbeTTL time.Duration

	ProbeMinSamples     int
	ProbeDegradedRatio   float64
	ProbeUnhealthyRatio  float64

	LedgerDegradedDrift  int
	LedgerUnhealthyDrift int
}

type TracingPolicy struct {
	SamplePercent           float64
	ErrorBoostPercent       float64
	LatencyBoostThresholdMs int64
	LatencyBoostPercent     float64
}

type EventBusPolicy struct {
	MaxSubscriberBuffer int
}

// Default returns a TelemetryPolicy populated with conservative heuristics.
func Default() TelemetryPolicy {
	return TelemetryPolicy{
		Health: HealthPolicy{
			ProbeTTL:             2 * time.Second,
			ProbeMinSamples:      10,
			ProbeDegradedRatio:   0.20,
			ProbeUnhealthyRatio:  0.50,
			LedgerDegradedDrift:  1,
			LedgerUnhealthyDrift: 3,
		},
		Tracing: TracingPolicy{SamplePercent: 20},
		Events:  EventBusPolicy{MaxSubscriberBuffer: 1024},
	}
}

// Normalize ensures sane bounds without mutating the original; returns a
// cleaned copy.
func (p TelemetryPolicy) Normalize() TelemetryPolicy {
	c := p
	if c.Health.ProbeTTL <= 0 {
		c.Health.ProbeTTL = 2 * time.Second
	}
	if c.Health.ProbeMinSamples <= 0 {
		c.Health.ProbeMinSamples = 10
	}
	if c.Health.ProbeDegradedRatio <= 0 {
		c.Health.ProbeDegradedRatio = 0.20
	}
	if c.Health.ProbeUnhealthyRatio <= 0 {
		c.Health.ProbeUnhealthyRatio = 0.50
	}
	if c.Health.LedgerDegradedDrift <= 0 {
		c.Health.LedgerDegradedDrift = 1
	}
	if c.Health.LedgerUnhealthyDrift <= 0 {
		c.Health.LedgerUnhealthyDrift = 3
	}
	if c.Tracing.SamplePercent < 0 {
		c.Tracing.SamplePercent = 0
	}
	if c.Tracing.SamplePercent > 100 {
		c.Tracing.SamplePercent = 100
	}
	if c.Events.MaxSubscriberBuffer <= 0 {
		c.Events.MaxSubscriberBuffer = 1024
	}
	return c
}
