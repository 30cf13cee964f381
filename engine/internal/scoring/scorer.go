// Package scoring computes the weighted multi-objective score the engine
// uses to rank agents, and holds the named preset weight tables operators
// select a target by.
package scoring

import (
	"math"

	"github.com/99souls/atrwac/engine/models"
)

// Presets maps each optimisation target to its seed weight table. custom has
// no preset; callers supply their own Weights for it. The tables are
// data-only and must be preserved exactly — no conditional branching per
// target beyond this lookup.
var Presets = map[models.Target]models.Weights{
	models.TargetMaxProfit:        {Profit: 0.50, WinRate: 0.25, Efficiency: 0.15, ResourcePenalty: 0.10},
	models.TargetMaxGrowthPct:     {Profit: 0.60, WinRate: 0.20, Efficiency: 0.10, ResourcePenalty: 0.10},
	models.TargetFastestSpeed:     {Profit: 0.25, WinRate: 0.20, Efficiency: 0.15, ResourcePenalty: 0.10, Speed: 0.30},
	models.TargetMaxWinRate:       {Profit: 0.20, WinRate: 0.50, Efficiency: 0.20, ResourcePenalty: 0.10},
	models.TargetMinDrawdown:      {Profit: 0.30, WinRate: 0.20, Efficiency: 0.10, ResourcePenalty: 0.10, Drawdown: 0.30},
	models.TargetBestSharpe:       {Profit: 0.30, WinRate: 0.20, Efficiency: 0.30, ResourcePenalty: 0.10, Drawdown: 0.10},
	models.TargetSentimentAligned: {Profit: 0.25, WinRate: 0.20, Efficiency: 0.10, ResourcePenalty: 0.10, Sentiment: 0.35},
}

// clamp01 bounds x to [0,1], mapping NaN/Inf to 0 per the engine's error
// handling design: the scorer never raises on bad input.
func clamp01(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Score computes the final score for r under weights w and the operator's
// current compute_usage_pct for the agent, appending nothing itself — the
// caller is responsible for recording the returned value into score_history.
func Score(r models.MetricRecord, computeUsagePct float64, w models.Weights) float64 {
	profit := sanitize(r.TotalProfit)
	var profitRaw float64
	if profit > 0 {
		profitRaw = clamp01(profit/10_000) * 1000
	}

	winRaw := sanitize(r.WinRate) * 1000

	efficiencyRaw := clamp01((sanitize(r.SharpeRatio)+3)/6) * 1000

	resourceRaw := sanitize(computeUsagePct) * 10

	var speedRaw float64
	if w.Speed > 0 {
		denom := sanitize(r.AvgTradeDurationMinutes)
		if denom < 1 {
			denom = 1
		}
		speedRaw = math.Min(1000, 1000/denom)
	}

	var sentimentRaw float64
	if w.Sentiment > 0 {
		sentimentRaw = sanitize(r.SentimentAccuracy) * 1000
	}

	var drawdownRaw float64
	if w.Drawdown > 0 {
		drawdownRaw = sanitize(r.MaxDrawdown) * 1000
	}

	score := w.Profit*profitRaw +
		w.WinRate*winRaw +
		w.Efficiency*efficiencyRaw +
		w.Speed*speedRaw +
		w.Sentiment*sentimentRaw -
		w.ResourcePenalty*resourceRaw -
		w.Drawdown*drawdownRaw

	if score < 0 || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// EffectiveWeights returns the weights to use for target: the preset table
// for named targets, or w unchanged for custom.
func EffectiveWeights(target models.Target, w models.Weights) models.Weights {
	if target == models.TargetCustom {
		return w
	}
	if preset, ok := Presets[target]; ok {
		return preset
	}
	return w
}
