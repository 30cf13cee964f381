package configx

import (
	"errors"

	"github.com/99souls/atrwac/engine/models"
)

// Validation errors for EngineConfig fields.
var (
	ErrNegativeWeight        = errors.New("weight must be non-negative")
	ErrPruningDaysNotIncreasing = errors.New("pruning day thresholds must be strictly increasing")
	ErrKeepFracOutOfRange    = errors.New("keep fraction must be in (0,1]")
	ErrOptimalKeepCountInvalid = errors.New("optimal_keep_count must be >= 1")
	ErrIntervalTooShort      = errors.New("evaluation_interval must be >= 1 second")
	ErrUnknownTarget         = errors.New("unknown optimisation target")
)

var validTargets = map[models.Target]bool{
	models.TargetMaxProfit:        true,
	models.TargetMaxGrowthPct:     true,
	models.TargetFastestSpeed:     true,
	models.TargetMaxWinRate:       true,
	models.TargetMinDrawdown:      true,
	models.TargetBestSharpe:       true,
	models.TargetSentimentAligned: true,
	models.TargetCustom:           true,
}

// ValidateSpec performs the structural and semantic checks enforced by §6:
// weights non-negative, pruning day thresholds strictly increasing, keep
// fractions in (0,1], optimal_keep_count >= 1, evaluation_interval >= 1s.
// The returned error, if any, is a *models.ConfigError wrapping
// models.ErrConfigInvalid with the offending field named.
func ValidateSpec(spec *models.EngineConfig) error {
	if spec == nil {
		return models.NewConfigError("spec", errors.New("nil spec"))
	}
	if !validTargets[spec.Target] {
		return models.NewConfigError("target", ErrUnknownTarget)
	}
	w := spec.Weights
	for name, v := range map[string]float64{
		"profit": w.Profit, "win_rate": w.WinRate, "efficiency": w.Efficiency,
		"resource_penalty": w.ResourcePenalty, "speed": w.Speed,
		"sentiment": w.Sentiment, "drawdown": w.Drawdown,
	} {
		if v < 0 {
			return models.NewConfigError("weights."+name, ErrNegativeWeight)
		}
	}
	p := spec.Pruning
	if !(p.FirstPruningDays < p.DeepPruningDays && p.DeepPruningDays < p.OptimalStateDays) {
		return models.NewConfigError("pruning.days", ErrPruningDaysNotIncreasing)
	}
	if p.FirstKeepFrac <= 0 || p.FirstKeepFrac > 1 {
		return models.NewConfigError("pruning.first_keep_frac", ErrKeepFracOutOfRange)
	}
	if p.DeepKeepFrac <= 0 || p.DeepKeepFrac > 1 {
		return models.NewConfigError("pruning.deep_keep_frac", ErrKeepFracOutOfRange)
	}
	if p.OptimalKeepCount < 1 {
		return models.NewConfigError("pruning.optimal_keep_count", ErrOptimalKeepCountInvalid)
	}
	if spec.EvaluationInterval.Seconds() < 1 {
		return models.NewConfigError("evaluation_interval", ErrIntervalTooShort)
	}
	return nil
}
