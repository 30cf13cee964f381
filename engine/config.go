package engine

import (
	"time"

	"github.com/99souls/atrwac/engine/internal/scoring"
	"github.com/99souls/atrwac/engine/models"
)

// TelemetryOptions describes which telemetry subsystems are enabled plus
// tuning knobs, mirroring the shape the facade has always exposed for its
// ambient observability stack.
type TelemetryOptions struct {
	EnableMetrics   bool
	EnableTracing   bool
	EnableEvents    bool
	EnableHealth    bool
	MetricsBackend  string // "prom" | "otel" | "noop"
	SamplingPercent float64
}

// Config is the full construction-time configuration for an Engine: the
// initial effective EngineConfig plus the injected collaborators the core
// depends on (§6) and ambient telemetry/resource tuning.
type Config struct {
	Initial     models.EngineConfig
	Accessor    AgentAccessor
	StopAgent   StopAgentFunc
	DeleteAgent DeleteAgentFunc

	Telemetry TelemetryOptions

	// LanesPerGPU overrides the deterministic init assignment rule (default 5).
	LanesPerGPU int

	// Clock is the only allowed test seam for "now"; defaults to time.Now.
	Clock func() time.Time
}

// Defaults returns a starting EngineConfig seeded from the max_profit
// preset, a conservative pruning policy, and a 24-hour evaluation cadence.
// Callers typically override Target/Pruning/EvaluationInterval before
// passing Config to New.
func Defaults() models.EngineConfig {
	return models.EngineConfig{
		Enabled: true,
		Target:  models.TargetMaxProfit,
		Weights: scoring.Presets[models.TargetMaxProfit],
		Pruning: models.PruningPolicy{
			FirstPruningDays: 30,
			DeepPruningDays:  60,
			OptimalStateDays: 90,
			FirstKeepFrac:    0.5,
			DeepKeepFrac:     0.25,
			OptimalKeepCount: 3,
			MinTradesForEval: 5,
			MinDaysForEval:   1,
		},
		EvaluationInterval: 24 * time.Hour,
		AutoPrune:          true,
	}
}

// materialize resolves spec.Target into concrete Weights. Per the scorer's
// target-preset contract, once a non-custom target is applied the engine
// retains no further notion of "target" — only the resulting weights are
// used for scoring from then on.
func materialize(spec models.EngineConfig) models.EngineConfig {
	spec.Weights = scoring.EffectiveWeights(spec.Target, spec.Weights)
	return spec
}
