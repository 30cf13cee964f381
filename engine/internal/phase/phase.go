// Package phase classifies elapsed wall-clock time into the engine's
// lifecycle phase. It is a pure function of its inputs; the only test seam
// is the clock passed in by the caller.
package phase

import (
	"time"

	"github.com/99souls/atrwac/engine/models"
)

// Clock abstracts time.Now so tests can advance the engine's notion of "now"
// without sleeping. The default is time.Now.
type Clock func() time.Time

// ElapsedDays returns floor((now - startedAt) in days).
func ElapsedDays(clock Clock, startedAt time.Time) int {
	if clock == nil {
		clock = time.Now
	}
	d := clock().Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Classify maps elapsed days against the configured thresholds into one of
// the first four phases. MAINTENANCE is never returned here; the engine
// enters it permanently once live count drops to optimal_keep_count,
// independent of elapsed time (see Engine.updatePhaseLocked in the engine
// package).
func Classify(elapsedDays int, policy models.PruningPolicy) models.Phase {
	switch {
	case elapsedDays < policy.FirstPruningDays:
		return models.PhaseInitialBlast
	case elapsedDays < policy.DeepPruningDays:
		return models.PhaseFirstPruning
	case elapsedDays < policy.OptimalStateDays:
		return models.PhaseDeepPruning
	default:
		return models.PhaseOptimalState
	}
}

// DaysUntilNextPhase reports how many days remain before elapsedDays would
// cross into the next threshold, clamped to zero. A classifier that would
// otherwise go negative (e.g. the live count already forced MAINTENANCE
// ahead of the day-based schedule) must report zero, not a negative number.
func DaysUntilNextPhase(elapsedDays int, policy models.PruningPolicy, current models.Phase) int {
	var next int
	switch current {
	case models.PhaseInitialBlast:
		next = policy.FirstPruningDays
	case models.PhaseFirstPruning:
		next = policy.DeepPruningDays
	case models.PhaseDeepPruning:
		next = policy.OptimalStateDays
	default:
		return 0
	}
	remaining := next - elapsedDays
	if remaining < 0 {
		return 0
	}
	return remaining
}

// rank orders phases for monotonicity checks (P1): later phases have a
// strictly higher rank. MAINTENANCE is terminal and always highest.
var rank = map[models.Phase]int{
	models.PhaseInitialBlast: 0,
	models.PhaseFirstPruning: 1,
	models.PhaseDeepPruning:  2,
	models.PhaseOptimalState: 3,
	models.PhaseMaintenance:  4,
}

// AtLeast reports whether a is the same phase as b or later in the sequence.
func AtLeast(a, b models.Phase) bool { return rank[a] >= rank[b] }
