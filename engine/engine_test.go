package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/99souls/atrwac/engine/models"
)

// fakeHandle is a minimal in-memory AgentHandle used to drive the engine
// without any real trading agents.
type fakeHandle struct {
	id, name string
	metric   models.MetricRecord
	compute  float64
	failStat bool
}

func (h *fakeHandle) ID() string   { return h.id }
func (h *fakeHandle) Name() string { return h.name }
func (h *fakeHandle) Stats() (models.MetricRecord, error) {
	if h.failStat {
		return models.MetricRecord{}, errors.New("probe failed")
	}
	return h.metric, nil
}
func (h *fakeHandle) ComputeUsagePct() float64 { return h.compute }

// fakeAccessor is a fixed, mutable-under-lock fleet of fakeHandles.
type fakeAccessor struct {
	mu      sync.Mutex
	handles []*fakeHandle
	stopped map[string]bool
}

func newFakeAccessor(handles ...*fakeHandle) *fakeAccessor {
	return &fakeAccessor{handles: handles, stopped: make(map[string]bool)}
}

func (a *fakeAccessor) GetAllAgents() ([]AgentHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AgentHandle, 0, len(a.handles))
	for _, h := range a.handles {
		out = append(out, h)
	}
	return out, nil
}

func (a *fakeAccessor) stopAgent(id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped[id] = true
	return true, nil
}

func (a *fakeAccessor) wasStopped(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped[id]
}

func agentHandle(id string, profit float64) *fakeHandle {
	return &fakeHandle{id: id, name: id, metric: models.MetricRecord{TotalProfit: profit, TotalTrades: 10}}
}

func newTestEngine(t *testing.T, acc *fakeAccessor, cfg models.EngineConfig) *Engine {
	t.Helper()
	eng, err := New(Config{
		Initial:   cfg,
		Accessor:  acc,
		StopAgent: acc.stopAgent,
		Telemetry: TelemetryOptions{EnableMetrics: true, MetricsBackend: "noop"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

// TestStartRegistersFixedRosterAndAssignsLanes covers the start() roster
// registration and deterministic lane assignment (C2).
func TestStartRegistersFixedRosterAndAssignsLanes(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 10), agentHandle("a2", 20), agentHandle("a3", 5))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := eng.GetStatus()
	if !st.Running {
		t.Fatalf("expected running after start")
	}
	if st.LiveCount != 3 || st.TotalKnown != 3 {
		t.Fatalf("expected 3 live/known agents, got %+v", st)
	}
	if st.Phase != models.PhaseInitialBlast {
		t.Fatalf("expected INITIAL_BLAST immediately after start, got %s", st.Phase)
	}
	allocs := eng.GetResourceSnapshot().Allocations
	for i, want := range []string{"a1", "a2", "a3"} {
		if i >= len(allocs) || allocs[i].AgentID != want || allocs[i].LaneID != i || allocs[i].GPUID != 0 {
			t.Fatalf("expected %s on lane %d of GPU 0 in registration order, got %+v", want, i, allocs)
		}
	}
}

// TestStartIsNoopWhenAlreadyRunning matches "already running" not being an
// error condition (§6/§7).
func TestStartIsNoopWhenAlreadyRunning(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 10))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("second start must be a no-op, got error: %v", err)
	}
}

// TestStartRejectsDuplicateAgentIDs drops the duplicate rather than failing
// the whole start.
func TestStartRejectsDuplicateAgentIDs(t *testing.T) {
	acc := newFakeAccessor(agentHandle("dup", 1), agentHandle("dup", 2))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := eng.GetStatus(); st.LiveCount != 1 {
		t.Fatalf("expected duplicate id collapsed to a single agent, got live=%d", st.LiveCount)
	}
}

// TestForceEvaluationScoresAndRanksWithoutPruning exercises C3->C5 directly
// without waiting on the tick loop, and without evicting even when
// auto_prune is enabled.
func TestForceEvaluationScoresAndRanksWithoutPruning(t *testing.T) {
	acc := newFakeAccessor(agentHandle("low", 1), agentHandle("high", 100))
	cfg := Defaults()
	cfg.AutoPrune = true
	eng := newTestEngine(t, acc, cfg)
	defer func() { _ = eng.Stop() }()
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	scores, err := eng.ForceEvaluation(context.Background())
	if err != nil {
		t.Fatalf("force evaluation: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected both agents still live, got %d", len(scores))
	}
	if scores[0].AgentID != "high" || scores[0].Rank != 1 {
		t.Fatalf("expected higher-profit agent ranked first, got %+v", scores[0])
	}
}

// TestForceEvaluationFailsWhenNotRunning enforces the documented
// not-running precondition.
func TestForceEvaluationFailsWhenNotRunning(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1))
	eng := newTestEngine(t, acc, Defaults())
	if _, err := eng.ForceEvaluation(context.Background()); !errors.Is(err, models.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

// TestManualPruneUnknownAgentReturnsNotFound and the already-pruned case
// exercise the ManualPrune error taxonomy (§7).
func TestManualPruneUnknownAgentReturnsNotFound(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())
	if _, err := eng.ManualPrune(context.Background(), "ghost", "test"); !errors.Is(err, models.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestManualPruneEvictsAndRecordsAudit(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1), agentHandle("a2", 2))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())

	st, err := eng.ManualPrune(context.Background(), "a1", "operator request")
	if err != nil {
		t.Fatalf("manual prune: %v", err)
	}
	if st.LiveCount != 1 {
		t.Fatalf("expected live count to drop to 1, got %d", st.LiveCount)
	}
	if !acc.wasStopped("a1") {
		t.Fatalf("expected stop_agent called for the pruned agent")
	}
	hist := eng.GetPruningHistory()
	if len(hist) != 1 || hist[0].AgentID != "a1" || hist[0].Reason != "operator request" {
		t.Fatalf("expected audit row for a1, got %+v", hist)
	}
}

func TestManualPruneRefusesAlreadyPrunedAgent(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1), agentHandle("a2", 2))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())
	if _, err := eng.ManualPrune(context.Background(), "a1", "first"); err != nil {
		t.Fatalf("first prune: %v", err)
	}
	if _, err := eng.ManualPrune(context.Background(), "a1", "second"); !errors.Is(err, models.ErrAlreadyPruned) {
		t.Fatalf("expected ErrAlreadyPruned on second prune, got %v", err)
	}
}

// TestUpdateConfigRejectsInvalidSpecAndLeavesCurrentUnchanged exercises P7:
// a failing validation must not mutate any observable field.
func TestUpdateConfigRejectsInvalidSpecAndLeavesCurrentUnchanged(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())

	before := eng.GetStatus().Config
	bad := before
	bad.Weights.Profit = -5
	if _, err := eng.UpdateConfig(bad, "test"); !errors.Is(err, models.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
	after := eng.GetStatus().Config
	if after.Weights.Profit != before.Weights.Profit {
		t.Fatalf("expected config unchanged after failed update, before=%v after=%v", before.Weights.Profit, after.Weights.Profit)
	}
}

func TestUpdateConfigAppliesValidSpec(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())

	next := eng.GetStatus().Config
	next.Target = models.TargetBestSharpe
	got, err := eng.UpdateConfig(next, "operator")
	if err != nil {
		t.Fatalf("update config: %v", err)
	}
	if got.Target != models.TargetBestSharpe {
		t.Fatalf("expected target applied, got %s", got.Target)
	}
	if eng.GetStatus().Config.Target != models.TargetBestSharpe {
		t.Fatalf("expected status to reflect the new target")
	}
}

// TestGetRankingsReturnsDeepCopyNotLiveState guards against callers
// mutating engine-internal state through the read API.
func TestGetRankingsReturnsDeepCopyNotLiveState(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())
	_, _ = eng.ForceEvaluation(context.Background())

	got := eng.GetRankings()
	if len(got) != 1 {
		t.Fatalf("expected one ranked agent, got %d", len(got))
	}
	got[0].FinalScore = 999999
	again := eng.GetRankings()
	if again[0].FinalScore == 999999 {
		t.Fatalf("expected GetRankings to return a deep copy, not a live reference")
	}
}

// TestChampionCountReflectsOptimalKeepCount exercises C5's champion
// assignment against a small live set.
func TestChampionCountReflectsOptimalKeepCount(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1), agentHandle("a2", 2), agentHandle("a3", 3))
	cfg := Defaults()
	cfg.Pruning.OptimalKeepCount = 2
	eng := newTestEngine(t, acc, cfg)
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())
	_, _ = eng.ForceEvaluation(context.Background())

	champs := eng.GetChampionInfo()
	if len(champs) != 2 {
		t.Fatalf("expected 2 champions (optimal_keep_count), got %d", len(champs))
	}
	if champs[0].Rank != 1 || champs[1].Rank != 2 {
		t.Fatalf("expected champions in rank order, got %+v", champs)
	}
}

// TestRegisterEventObserverReceivesPruningEvent covers the event bridge
// from an internal pruning decision to an external observer.
func TestRegisterEventObserverReceivesPruningEvent(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1), agentHandle("a2", 2))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	_ = eng.Start(context.Background())

	var mu sync.Mutex
	var got TelemetryEvent
	eng.RegisterEventObserver(func(ev TelemetryEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = ev
	})

	if _, err := eng.ManualPrune(context.Background(), "a1", "test"); err != nil {
		t.Fatalf("manual prune: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Type != "agent_manually_pruned" {
		t.Fatalf("expected observer to see the manual-prune event, got %+v", got)
	}
}

// TestStopCancelsLoopAndIsIdempotent covers O4 (stop observed promptly) and
// the documented no-op-when-not-running behaviour.
func TestStopCancelsLoopAndIsIdempotent(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 1))
	cfg := Defaults()
	cfg.EvaluationInterval = time.Second
	eng := newTestEngine(t, acc, cfg)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("second stop must be a no-op, got %v", err)
	}
	if eng.GetStatus().Running {
		t.Fatalf("expected engine not running after stop")
	}
}

// TestAutoPruneEvictsTailOverTicks is a small end-to-end scenario: a short
// evaluation interval drives the loop through several ticks, at which point
// the worst-scoring agent should have been evicted (a FIRST_PRUNING
// eviction, S2-style).
func TestAutoPruneEvictsTailOverTicks(t *testing.T) {
	acc := newFakeAccessor(agentHandle("worst", 1), agentHandle("mid", 50), agentHandle("best", 100))
	cfg := Defaults()
	cfg.EvaluationInterval = time.Second
	cfg.Pruning.FirstPruningDays = 0
	cfg.Pruning.OptimalKeepCount = 1
	cfg.Pruning.FirstKeepFrac = 0.5
	eng := newTestEngine(t, acc, cfg)
	defer func() { _ = eng.Stop() }()
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if acc.wasStopped("worst") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !acc.wasStopped("worst") {
		t.Fatalf("expected the worst-scoring agent to eventually be pruned")
	}
}

// TestGetResourceSnapshotExposesPerSlotAllocations covers the resources
// endpoint's backing data: the aggregate Stats rollup plus the per-lane
// assignment detail Stats summarizes.
func TestGetResourceSnapshotExposesPerSlotAllocations(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 10), agentHandle("a2", 20))
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := eng.GetResourceSnapshot()
	if snap.LiveLanes != 2 {
		t.Fatalf("expected 2 live lanes, got %d", snap.LiveLanes)
	}
	if len(snap.Allocations) != 2 {
		t.Fatalf("expected 2 per-slot allocations, got %d", len(snap.Allocations))
	}
	seen := map[string]bool{}
	for _, alloc := range snap.Allocations {
		seen[alloc.AgentID] = true
	}
	if !seen["a1"] || !seen["a2"] {
		t.Fatalf("expected allocations for both agents, got %+v", snap.Allocations)
	}
	if snap.TotalGPUSlots <= 0 {
		t.Fatalf("expected a positive total GPU slot count, got %d", snap.TotalGPUSlots)
	}
}

// TestFleetMetricsSyncedAfterTick checks that the fleet metrics adapter is
// wired into the engine (constructed whenever metrics are enabled) and that
// syncing it against live probe failures doesn't panic or block — the
// adapter's own package tests cover the gauge values and the counters'
// delta bookkeeping.
func TestFleetMetricsSyncedAfterTick(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 10), &fakeHandle{id: "a2", name: "a2", failStat: true})
	eng := newTestEngine(t, acc, Defaults())
	defer func() { _ = eng.Stop() }()
	if eng.fleetMetrics == nil {
		t.Fatalf("expected a fleet metrics adapter when metrics are enabled")
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := eng.ForceEvaluation(context.Background()); err != nil {
		t.Fatalf("force evaluation: %v", err)
	}
	if got := eng.GetStatus().ProbeErrors; got == 0 {
		t.Fatalf("expected at least one recorded probe error, got %d", got)
	}
}

// TestFleetMetricsNilWhenMetricsDisabled confirms the adapter is skipped
// rather than constructed against a nil provider.
func TestFleetMetricsNilWhenMetricsDisabled(t *testing.T) {
	acc := newFakeAccessor(agentHandle("a1", 10))
	eng, err := New(Config{Initial: Defaults(), Accessor: acc, StopAgent: acc.stopAgent})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = eng.Stop() }()
	if eng.fleetMetrics != nil {
		t.Fatalf("expected no fleet metrics adapter when telemetry metrics are disabled")
	}
	// syncFleetMetricsLocked must be a no-op, not a nil-pointer panic.
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}
