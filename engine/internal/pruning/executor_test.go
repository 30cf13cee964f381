package pruning

import (
	"testing"
	"time"

	"github.com/99souls/atrwac/engine/models"
)

func testPolicy() models.PruningPolicy {
	return models.PruningPolicy{FirstKeepFrac: 0.5, DeepKeepFrac: 0.25, OptimalKeepCount: 3}
}

func TestKeepNeverPrunesInitialBlastOrMaintenance(t *testing.T) {
	p := testPolicy()
	if _, prune := Keep(models.PhaseInitialBlast, 20, p); prune {
		t.Fatalf("INITIAL_BLAST must never prune")
	}
	if _, prune := Keep(models.PhaseMaintenance, 20, p); prune {
		t.Fatalf("MAINTENANCE must never prune")
	}
}

func TestKeepSkipsWhenAlreadyAtOrBelowOptimal(t *testing.T) {
	p := testPolicy()
	keep, prune := Keep(models.PhaseFirstPruning, 3, p)
	if prune || keep != 3 {
		t.Fatalf("expected no-op when n <= optimal_keep_count, got keep=%d prune=%v", keep, prune)
	}
}

func TestKeepFirstPruningFloorsAtOptimalKeepCount(t *testing.T) {
	p := testPolicy()
	keep, prune := Keep(models.PhaseFirstPruning, 5, p)
	if !prune || keep != 3 {
		t.Fatalf("expected floor to optimal_keep_count=3 (5*0.5=2 < 3), got keep=%d prune=%v", keep, prune)
	}
}

func TestKeepOptimalStateKeepsExactlyOptimalCount(t *testing.T) {
	p := testPolicy()
	keep, prune := Keep(models.PhaseOptimalState, 50, p)
	if !prune || keep != 3 {
		t.Fatalf("expected keep=3 in OPTIMAL_STATE, got keep=%d", keep)
	}
}

func liveAgent(id string, rank int) *models.AgentScore {
	return &models.AgentScore{AgentID: id, Name: id, Rank: rank, IsActive: true, FinalScore: float64(100 - rank)}
}

func TestEvictTailProducesAscendingScoreAuditOrder(t *testing.T) {
	live := []*models.AgentScore{liveAgent("r1", 1), liveAgent("r2", 2), liveAgent("r3", 3), liveAgent("r4", 4)}
	var stopped []string
	stop := StopFunc(func(id string) (bool, error) { stopped = append(stopped, id); return true, nil })
	rows := EvictTail(live, 2, models.PhaseDeepPruning, time.Now(), stop, func(string) {}, nil)
	if len(rows) != 2 {
		t.Fatalf("expected 2 evictions, got %d", len(rows))
	}
	// r4 has the lowest score (rank 4) and must be audited first (ascending score).
	if rows[0].AgentID != "r4" || rows[1].AgentID != "r3" {
		t.Fatalf("expected ascending-score audit order r4,r3 got %s,%s", rows[0].AgentID, rows[1].AgentID)
	}
	if len(stopped) != 2 {
		t.Fatalf("expected stop called for every evicted agent")
	}
}

func TestEvictTailNoopWhenKeepCoversAllLive(t *testing.T) {
	live := []*models.AgentScore{liveAgent("a", 1), liveAgent("b", 2)}
	rows := EvictTail(live, 2, models.PhaseFirstPruning, time.Now(), nil, nil, nil)
	if rows != nil {
		t.Fatalf("expected no evictions when keep >= n")
	}
}

func TestEvictTailMarksAgentsInactiveAndRecordsReason(t *testing.T) {
	live := []*models.AgentScore{liveAgent("a", 1), liveAgent("b", 2)}
	rows := EvictTail(live, 1, models.PhaseDeepPruning, time.Now(), StopFunc(func(string) (bool, error) { return true, nil }), func(string) {}, nil)
	if len(rows) != 1 || rows[0].AgentID != "b" {
		t.Fatalf("expected b evicted, got %+v", rows)
	}
	if live[1].IsActive {
		t.Fatalf("expected evicted agent marked inactive")
	}
	if live[1].PrunedAt == nil {
		t.Fatalf("expected PrunedAt set")
	}
}

func TestManualPruneRefusesAlreadyPrunedAgent(t *testing.T) {
	agent := liveAgent("a", 1)
	agent.IsActive = false
	_, ok := ManualPrune(agent, "operator request", models.PhaseMaintenance, time.Now(), nil, nil, nil)
	if ok {
		t.Fatalf("expected ManualPrune to refuse an already-pruned agent")
	}
}

func TestManualPruneEvictsActiveAgentWithGivenReason(t *testing.T) {
	agent := liveAgent("a", 1)
	row, ok := ManualPrune(agent, "operator request", models.PhaseMaintenance, time.Now(), StopFunc(func(string) (bool, error) { return true, nil }), func(string) {}, nil)
	if !ok {
		t.Fatalf("expected ManualPrune to succeed on an active agent")
	}
	if row.Reason != "operator request" {
		t.Fatalf("expected audit row to carry the operator-supplied reason")
	}
	if agent.IsActive {
		t.Fatalf("expected agent marked inactive")
	}
}

func TestEvictOneLogsStopFailureButStillEvicts(t *testing.T) {
	var logged bool
	agent := liveAgent("a", 1)
	stop := StopFunc(func(string) (bool, error) { return false, nil })
	log := Logger(func(msg, id string, err error) { logged = true })
	row := evictOne(agent, models.PhaseDeepPruning, "reason", time.Now(), stop, func(string) {}, log)
	if !logged {
		t.Fatalf("expected stop failure to be logged")
	}
	if row.AgentID != "a" || agent.IsActive {
		t.Fatalf("expected agent evicted despite stop failure")
	}
}
