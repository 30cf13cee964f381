// Package pruning implements the per-phase survivor computation and
// ranked-tail eviction described by the engine's pruning executor.
package pruning

import (
	"fmt"
	"time"

	"github.com/99souls/atrwac/engine/models"
)

// Keep computes the target survivor count for phase given N live agents and
// policy, and whether pruning should run this tick. INITIAL_BLAST and
// MAINTENANCE never prune, nor does a live set already at or below
// optimal_keep_count (keep == N, prune == false).
func Keep(phase models.Phase, n int, policy models.PruningPolicy) (keep int, prune bool) {
	if n <= policy.OptimalKeepCount {
		return n, false
	}
	switch phase {
	case models.PhaseFirstPruning:
		k := int(float64(n) * policy.FirstKeepFrac)
		if k < policy.OptimalKeepCount {
			k = policy.OptimalKeepCount
		}
		return k, true
	case models.PhaseDeepPruning:
		k := int(float64(n) * policy.DeepKeepFrac)
		if k < policy.OptimalKeepCount {
			k = policy.OptimalKeepCount
		}
		return k, true
	case models.PhaseOptimalState:
		return policy.OptimalKeepCount, true
	default: // INITIAL_BLAST, MAINTENANCE
		return n, false
	}
}

// StopFunc requests an agent stop; failures are logged by the caller but
// never block further pruning within the same tick.
type StopFunc func(agentID string) (bool, error)

// ReleaseFunc releases an agent's resource ledger entries.
type ReleaseFunc func(agentID string)

// Logger receives non-fatal eviction problems (accessor/stop failures).
type Logger func(msg string, agentID string, err error)

// EvictTail evicts every agent in live whose Rank exceeds keep, in ascending
// score order (the live slice is assumed already rank-sorted descending by
// score, so the tail is walked back-to-front). Mutates each evicted
// AgentScore in place and returns one audit row per eviction.
func EvictTail(live []*models.AgentScore, keep int, phase models.Phase, now time.Time, stop StopFunc, release ReleaseFunc, log Logger) []models.AuditRow {
	n := len(live)
	if keep >= n {
		return nil
	}
	tail := make([]*models.AgentScore, 0, n-keep)
	for _, a := range live {
		if a.Rank > keep {
			tail = append(tail, a)
		}
	}
	rows := make([]models.AuditRow, 0, len(tail))
	for i := len(tail) - 1; i >= 0; i-- {
		agent := tail[i]
		reason := fmt.Sprintf("Below threshold in %s phase (rank %d/%d)", phase, agent.Rank, n)
		rows = append(rows, evictOne(agent, phase, reason, now, stop, release, log))
	}
	return rows
}

// ManualPrune evicts a single agent regardless of rank, with a
// caller-supplied reason. Refuses (returns false) if the agent is already
// pruned; the engine maps that to the Conflict error kind.
func ManualPrune(agent *models.AgentScore, reason string, phase models.Phase, now time.Time, stop StopFunc, release ReleaseFunc, log Logger) (models.AuditRow, bool) {
	if !agent.IsActive {
		return models.AuditRow{}, false
	}
	return evictOne(agent, phase, reason, now, stop, release, log), true
}

func evictOne(agent *models.AgentScore, phase models.Phase, reason string, now time.Time, stop StopFunc, release ReleaseFunc, log Logger) models.AuditRow {
	agent.IsActive = false
	prunedAt := now
	agent.PrunedAt = &prunedAt
	agent.PrunedReason = reason

	if stop != nil {
		if ok, err := stop(agent.AgentID); err != nil || !ok {
			if log != nil {
				log("stop_agent failed during eviction", agent.AgentID, err)
			}
		}
	}
	if release != nil {
		release(agent.AgentID)
	}
	return models.AuditRow{
		Time:       now,
		AgentID:    agent.AgentID,
		AgentName:  agent.Name,
		Reason:     reason,
		FinalScore: agent.FinalScore,
		Rank:       agent.Rank,
		Phase:      phase,
	}
}
