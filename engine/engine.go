// Package engine implements the Agentic Tuning engine: a phased,
// metric-driven lifecycle controller that scores a fixed fleet of trading
// agents every tick and progressively retires underperformers until only a
// champion set remains.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/99souls/atrwac/engine/configx"
	"github.com/99souls/atrwac/engine/internal/phase"
	"github.com/99souls/atrwac/engine/internal/pruning"
	"github.com/99souls/atrwac/engine/internal/ranking"
	"github.com/99souls/atrwac/engine/internal/scoring"
	intevents "github.com/99souls/atrwac/engine/internal/telemetry/events"
	intmetrics "github.com/99souls/atrwac/engine/internal/telemetry/metrics"
	inttelempolicy "github.com/99souls/atrwac/engine/internal/telemetry/policy"
	"github.com/99souls/atrwac/engine/models"
	"github.com/99souls/atrwac/engine/resources"
	"github.com/99souls/atrwac/engine/telemetry/health"
	"github.com/99souls/atrwac/engine/telemetry/logging"
	pubmetrics "github.com/99souls/atrwac/engine/telemetry/metrics"
	"github.com/99souls/atrwac/engine/telemetry/tracing"
)

// TelemetryEvent is a reduced, stable event representation for external
// observers, decoupling them from the internal event bus's package.
type TelemetryEvent struct {
	Time     time.Time              `json:"time"`
	Category string                 `json:"category"`
	Type     string                 `json:"type"`
	Severity string                 `json:"severity,omitempty"`
	TraceID  string                 `json:"trace_id,omitempty"`
	SpanID   string                 `json:"span_id,omitempty"`
	Labels   map[string]string      `json:"labels,omitempty"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// EventObserver receives TelemetryEvent notifications.
type EventObserver func(ev TelemetryEvent)

// Re-export telemetry policy types: stable facade surface while the
// implementation stays internal.
type TelemetryPolicy = inttelempolicy.TelemetryPolicy
type HealthPolicy = inttelempolicy.HealthPolicy
type TracingPolicy = inttelempolicy.TracingPolicy
type EventBusPolicy = inttelempolicy.EventBusPolicy

func DefaultTelemetryPolicy() TelemetryPolicy { return inttelempolicy.Default() }

// Status is the read model behind get_status().
type Status struct {
	Running             bool             `json:"running"`
	StartedAt           time.Time        `json:"started_at,omitempty"`
	Uptime              time.Duration    `json:"uptime"`
	Phase               models.Phase     `json:"phase"`
	DaysUntilNextPhase  int              `json:"days_until_next_phase"`
	LiveCount           int              `json:"live_count"`
	TotalKnown          int              `json:"total_known"`
	ChampionCount       int              `json:"champion_count"`
	ProbeErrors         uint64           `json:"probe_errors"`
	Resources           resources.Stats  `json:"resources"`
	Config              models.EngineConfig `json:"config"`
}

// Engine composes the phase classifier, resource ledger, scorer, ranker,
// and pruning executor behind a single facade with one owned evaluation
// loop goroutine. External entry points serialize through mu so that no two
// mutating operations observe an inconsistent intermediate state (§5).
type Engine struct {
	mu sync.Mutex

	started   atomic.Bool
	startedAt time.Time
	clock     func() time.Time

	accessor    AgentAccessor
	stopAgent   StopAgentFunc
	deleteAgent DeleteAgentFunc

	cfgStore *configx.VersionedStore
	cfg      models.EngineConfig

	ledger     *resources.Manager
	totalKnown int

	agents []*models.AgentScore
	index  map[string]int // agent_id -> index into agents

	phaseNow models.Phase

	auditLog []models.AuditRow

	probeErrors atomic.Uint64

	loopCancel context.CancelFunc
	loopDone   chan struct{}

	telemetry       TelemetryOptions
	metricsProvider intmetrics.Provider
	fleetMetrics    *pubmetrics.FleetMetricsAdapter
	eventBus        intevents.Bus
	healthEval      *health.Evaluator
	logger          logging.Logger
	tracer          *tracing.Provider
	telemetryPolicy atomic.Pointer[inttelempolicy.TelemetryPolicy]

	eventObserversMu sync.RWMutex
	eventObservers   []EventObserver
}

// New validates cfg.Initial, wires telemetry and the resource ledger, and
// records version 1 of the effective config. It does not register agents or
// start the evaluation loop — that happens in Start().
func New(cfg Config) (*Engine, error) {
	if cfg.Accessor == nil {
		return nil, errors.New("engine: Accessor is required")
	}
	if err := configx.ValidateSpec(&cfg.Initial); err != nil {
		return nil, err
	}
	initial := materialize(cfg.Initial)
	if err := configx.ValidateSpec(&initial); err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	ledger, err := resources.NewManager(resources.Config{LanesPerGPU: cfg.LanesPerGPU})
	if err != nil {
		return nil, fmt.Errorf("engine: build resource ledger: %w", err)
	}

	e := &Engine{
		clock:       clock,
		accessor:    cfg.Accessor,
		stopAgent:   cfg.StopAgent,
		deleteAgent: cfg.DeleteAgent,
		cfgStore:    configx.NewVersionedStore(),
		ledger:      ledger,
		index:       make(map[string]int),
		telemetry:   cfg.Telemetry,
		phaseNow:    models.PhaseInitialBlast,
	}

	if _, err := e.cfgStore.Append(&initial, "init", "initial config"); err != nil {
		return nil, err
	}
	e.cfg = initial

	initialPolicy := inttelempolicy.Default()
	e.telemetryPolicy.Store(&initialPolicy)

	if cfg.Telemetry.EnableMetrics {
		e.metricsProvider = selectMetricsProvider(cfg.Telemetry.MetricsBackend)
		e.fleetMetrics = pubmetrics.NewFleetMetricsAdapter(e.metricsProvider)
	}
	if cfg.Telemetry.EnableEvents {
		e.eventBus = intevents.NewBus(e.metricsProvider)
	}
	if cfg.Telemetry.EnableTracing {
		frac := cfg.Telemetry.SamplingPercent / 100
		e.tracer = tracing.NewProvider(frac)
	}
	e.logger = logging.New(nil)
	if cfg.Telemetry.EnableHealth {
		e.healthEval = health.NewEvaluator(initialPolicy.Health.ProbeTTL, e.healthProbes()...)
	}

	return e, nil
}

func selectMetricsProvider(backend string) intmetrics.Provider {
	switch strings.ToLower(backend) {
	case "otel", "opentelemetry":
		return pubmetrics.NewOTelProvider(pubmetrics.OTelProviderOptions{})
	case "noop":
		return intmetrics.NewNoopProvider()
	case "", "prom", "prometheus":
		return pubmetrics.NewPrometheusProvider(pubmetrics.PrometheusProviderOptions{})
	default:
		return pubmetrics.NewPrometheusProvider(pubmetrics.PrometheusProviderOptions{})
	}
}

func (e *Engine) healthProbes() []health.Probe {
	probeHealth := health.ProbeFunc(func(ctx context.Context) health.ProbeResult {
		errs := e.probeErrors.Load()
		e.mu.Lock()
		n := len(e.agents)
		e.mu.Unlock()
		if n == 0 {
			return health.Healthy("metrics_probe")
		}
		pol := e.Policy()
		ratio := float64(errs) / float64(n)
		if n < pol.Health.ProbeMinSamples {
			return health.Healthy("metrics_probe")
		}
		if ratio >= pol.Health.ProbeUnhealthyRatio {
			return health.Unhealthy("metrics_probe", "error ratio severe")
		}
		if ratio >= pol.Health.ProbeDegradedRatio {
			return health.Degraded("metrics_probe", "error ratio elevated")
		}
		return health.Healthy("metrics_probe")
	})
	probeLedger := health.ProbeFunc(func(ctx context.Context) health.ProbeResult {
		e.mu.Lock()
		live := e.liveCountLocked()
		stats := e.ledger.Stats(e.totalKnown)
		e.mu.Unlock()
		drift := live - stats.LiveLanes
		if drift < 0 {
			drift = -drift
		}
		pol := e.Policy()
		if drift >= pol.Health.LedgerUnhealthyDrift {
			return health.Unhealthy("resource_ledger", "lane count diverged from live agents")
		}
		if drift >= pol.Health.LedgerDegradedDrift {
			return health.Degraded("resource_ledger", "lane count drifting from live agents")
		}
		return health.Healthy("resource_ledger")
	})
	return []health.Probe{probeHealth, probeLedger}
}

// Policy returns the current telemetry policy snapshot. Never nil.
func (e *Engine) Policy() TelemetryPolicy {
	if p := e.telemetryPolicy.Load(); p != nil {
		return *p
	}
	return inttelempolicy.Default()
}

// UpdateTelemetryPolicy atomically swaps the active telemetry policy.
func (e *Engine) UpdateTelemetryPolicy(p *TelemetryPolicy) {
	var snap TelemetryPolicy
	if p == nil {
		snap = inttelempolicy.Default()
	} else {
		snap = p.Normalize()
	}
	old := e.Policy()
	e.telemetryPolicy.Store(&snap)
	if old.Health.ProbeTTL != snap.Health.ProbeTTL && e.healthEval != nil {
		e.healthEval = health.NewEvaluator(snap.Health.ProbeTTL, e.healthProbes()...)
	}
}

// RegisterEventObserver adds an observer invoked synchronously for every
// internal telemetry event bridged to the facade (phase transitions,
// pruning notifications, and config updates). No-op if obs is nil.
func (e *Engine) RegisterEventObserver(obs EventObserver) {
	if obs == nil {
		return
	}
	e.eventObserversMu.Lock()
	e.eventObservers = append(e.eventObservers, obs)
	e.eventObserversMu.Unlock()
}

func (e *Engine) dispatchEvent(ev intevents.Event) {
	if e.eventBus != nil {
		_ = e.eventBus.Publish(ev)
	}
	e.eventObserversMu.RLock()
	if len(e.eventObservers) == 0 {
		e.eventObserversMu.RUnlock()
		return
	}
	observers := append([]EventObserver(nil), e.eventObservers...)
	e.eventObserversMu.RUnlock()
	pub := TelemetryEvent{Time: ev.Time, Category: ev.Category, Type: ev.Type, Severity: ev.Severity, TraceID: ev.TraceID, SpanID: ev.SpanID, Labels: ev.Labels, Fields: ev.Fields}
	for _, o := range observers {
		func() {
			defer func() { _ = recover() }()
			o(pub)
		}()
	}
}

// HealthSnapshot evaluates (or returns cached) subsystem health.
func (e *Engine) HealthSnapshot(ctx context.Context) health.Snapshot {
	if e.healthEval == nil {
		return health.Snapshot{}
	}
	return e.healthEval.Evaluate(ctx)
}

// MetricsProvider returns the active metrics backend, or nil if metrics are
// disabled. Adapters that need more than a bare scrape handler (telemetryhttp's
// NewMetricsHandler, in particular) build against this instead of reaching
// into engine internals.
func (e *Engine) MetricsProvider() intmetrics.Provider {
	return e.metricsProvider
}

// Start transitions Stopped -> Running: it registers the fixed agent
// roster, assigns resource ledger slots deterministically, and spawns the
// evaluation loop. Calling Start on an already-running engine is a no-op
// (the repeated call is logged through ErrorCtx, at error rather than
// warning level, and Start returns nil, per §6/§7 — "already running" is
// not an error).
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started.Load() {
		e.mu.Unlock()
		e.logger.ErrorCtx(ctx, "start called while already running")
		return nil
	}

	handles, err := e.accessor.GetAllAgents()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: get_all_agents at start: %w", err)
	}

	seen := make(map[string]struct{}, len(handles))
	i := 0
	for _, h := range handles {
		id := h.ID()
		if _, dup := seen[id]; dup {
			e.logger.ErrorCtx(ctx, "duplicate agent id from accessor rejected", "agent_id", id)
			continue
		}
		seen[id] = struct{}{}
		lane, gpu := e.ledger.LaneForIndex(i)
		if err := e.ledger.Assign(id, lane, gpu); err != nil {
			e.logger.ErrorCtx(ctx, "resource assignment failed", "agent_id", id, "err", err.Error())
			continue
		}
		metric, _ := h.Stats()
		score := &models.AgentScore{
			AgentID:      id,
			Name:         h.Name(),
			Assignment:   models.ResourceAssignment{LaneID: lane, GPUID: gpu},
			LastMetric:   metric,
			IsActive:     true,
			ScoreHistory: nil,
		}
		e.index[id] = len(e.agents)
		e.agents = append(e.agents, score)
		i++
	}
	e.totalKnown = len(e.agents)
	e.startedAt = e.clock()
	e.phaseNow = models.PhaseInitialBlast
	e.syncFleetMetricsLocked()

	loopCtx, cancel := context.WithCancel(context.Background())
	e.loopCancel = cancel
	e.loopDone = make(chan struct{})
	e.started.Store(true)
	e.mu.Unlock()

	go e.runLoop(loopCtx)
	return nil
}

// Stop cancels the evaluation loop. A stop() guaranteed to be observed
// before the next tick completes (O4); not running is a no-op.
func (e *Engine) Stop() error {
	if !e.started.Load() {
		return nil
	}
	e.mu.Lock()
	cancel := e.loopCancel
	done := e.loopDone
	e.mu.Unlock()
	e.started.Store(false)
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

// runLoop is the single long-lived cooperative task spawned by Start. Being
// one goroutine, ticks can never overlap by construction: the next sleep
// only begins after the previous tick body returns.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.loopDone)
	for {
		interval := e.currentInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if !e.started.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		extra := e.runTickGuarded(ctx)
		if extra > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(extra):
			}
		}
	}
}

func (e *Engine) currentInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.EvaluationInterval <= 0 {
		return time.Second
	}
	return e.cfg.EvaluationInterval
}

// runTickGuarded wraps runTick with a panic recovery matching the
// LoopAborted error kind: log at error severity, and signal the loop to
// sleep 60 seconds before resuming. A panic never terminates the loop
// implicitly — only Stop() does.
func (e *Engine) runTickGuarded(ctx context.Context) (extraDelay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorCtx(ctx, "loop aborted by unexpected panic", "recovered", fmt.Sprint(r))
			extraDelay = time.Minute
		}
	}()
	return e.runTick(ctx)
}

// runTick executes one evaluation tick: phase update, metrics probe,
// scoring, ranking, and (if auto_prune) pruning. It holds mu for the whole
// body so external entry points observe a consistent state (§5).
func (e *Engine) runTick(ctx context.Context) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started.Load() {
		return 0
	}
	now := e.clock()
	e.updatePhaseLocked(now)

	handles, err := e.accessor.GetAllAgents()
	if err != nil {
		e.logger.ErrorCtx(ctx, "global metrics probe failure", "err", err.Error())
		return time.Minute
	}
	byID := make(map[string]AgentHandle, len(handles))
	for _, h := range handles {
		byID[h.ID()] = h
	}

	e.probeAndScoreLocked(ctx, byID, now)
	live := e.liveSliceLocked()
	ranking.Rank(live, e.cfg.Pruning.OptimalKeepCount)

	if e.cfg.AutoPrune {
		e.pruneLocked(ctx, now, live)
	}
	e.syncFleetMetricsLocked()
	return 0
}

func (e *Engine) probeAndScoreLocked(ctx context.Context, byID map[string]AgentHandle, now time.Time) {
	weights := scoring.EffectiveWeights(e.cfg.Target, e.cfg.Weights)
	for _, a := range e.agents {
		if !a.IsActive {
			continue
		}
		if h, ok := byID[a.AgentID]; ok {
			metric, err := h.Stats()
			if err != nil {
				e.probeErrors.Add(1)
				e.logger.ErrorCtx(ctx, "agent probe failed", "agent_id", a.AgentID, "err", err.Error())
			} else {
				a.LastMetric = metric
			}
			if cu, ok := h.(ComputeUsageProvider); ok {
				a.ComputeUsagePct = cu.ComputeUsagePct()
			}
		} else {
			e.probeErrors.Add(1)
		}
		a.FinalScore = scoring.Score(a.LastMetric, a.ComputeUsagePct, weights)
		a.ScoreHistory = append(a.ScoreHistory, models.ScorePoint{Time: now, Score: a.FinalScore})
	}
}

func (e *Engine) updatePhaseLocked(now time.Time) {
	prev := e.phaseNow
	defer func() {
		if e.phaseNow != prev {
			e.logger.InfoCtx(context.Background(), "phase transition", "from", string(prev), "to", string(e.phaseNow))
			e.dispatchEvent(intevents.Event{
				Time: now, Category: intevents.CategoryPhase, Type: "phase_changed",
				Fields: map[string]interface{}{"from": string(prev), "to": string(e.phaseNow)},
			})
		}
	}()
	if e.liveCountLocked() <= e.cfg.Pruning.OptimalKeepCount && len(e.agents) > 0 {
		e.phaseNow = models.PhaseMaintenance
		return
	}
	elapsed := phase.ElapsedDays(func() time.Time { return now }, e.startedAt)
	next := phase.Classify(elapsed, e.cfg.Pruning)
	if phase.AtLeast(next, e.phaseNow) {
		e.phaseNow = next
	}
}

// pruneLocked evicts the ranked tail of live, which must already be sorted
// descending by score (i.e. the slice ranking.Rank just sorted in place) so
// EvictTail's reverse walk yields ascending-score audit order.
func (e *Engine) pruneLocked(ctx context.Context, now time.Time, live []*models.AgentScore) {
	n := len(live)
	if n == 0 {
		return
	}
	keep, shouldPrune := pruning.Keep(e.phaseNow, n, e.cfg.Pruning)
	if !shouldPrune {
		return
	}
	log := func(msg, agentID string, err error) { e.logger.ErrorCtx(ctx, msg, "agent_id", agentID) }
	rows := pruning.EvictTail(live, keep, e.phaseNow, now, pruning.StopFunc(e.stopAgent), e.ledger.Release, log)
	for _, row := range rows {
		e.auditLog = append(e.auditLog, row)
		e.dispatchEvent(intevents.Event{
			Time: row.Time, Category: intevents.CategoryPruning, Type: "agent_pruned",
			Fields: map[string]interface{}{"agent_id": row.AgentID, "reason": row.Reason, "rank": row.Rank, "phase": string(row.Phase)},
		})
	}
}

// syncFleetMetricsLocked pushes the current fleet state into the domain
// metrics instruments. Called from every entry point that mutates agent or
// audit-log state while holding mu, so the exported gauges/counters never
// lag more than one tick behind GetStatus().
func (e *Engine) syncFleetMetricsLocked() {
	if e.fleetMetrics == nil {
		return
	}
	prunesByPhase := make(map[string]int, 4)
	for _, row := range e.auditLog {
		prunesByPhase[string(row.Phase)]++
	}
	e.fleetMetrics.Sync(pubmetrics.FleetSnapshot{
		LiveAgents:        e.liveCountLocked(),
		ChampionCount:     e.championCountLocked(),
		ProbeErrors:       e.probeErrors.Load(),
		ComputeSavingsPct: e.ledger.Stats(e.totalKnown).ComputeSavings,
		PrunesByPhase:     prunesByPhase,
	})
}

func (e *Engine) liveCountLocked() int {
	n := 0
	for _, a := range e.agents {
		if a.IsActive {
			n++
		}
	}
	return n
}

func (e *Engine) liveSliceLocked() []*models.AgentScore {
	out := make([]*models.AgentScore, 0, len(e.agents))
	for _, a := range e.agents {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

// UpdateConfig atomically replaces the effective config. A failing
// validation leaves every observable field of the current config unchanged
// (P7); the new config takes effect starting with the next tick.
func (e *Engine) UpdateConfig(next models.EngineConfig, actor string) (models.EngineConfig, error) {
	if err := configx.ValidateSpec(&next); err != nil {
		return models.EngineConfig{}, err
	}
	materialized := materialize(next)
	if err := configx.ValidateSpec(&materialized); err != nil {
		return models.EngineConfig{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.cfgStore.Append(&materialized, actor, "update_config"); err != nil {
		return models.EngineConfig{}, err
	}
	e.cfg = materialized
	e.dispatchEvent(intevents.Event{Time: e.clock(), Category: intevents.CategoryConfig, Type: "config_updated"})
	return materialized, nil
}

// GetStatus returns a deep-copied status snapshot.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	var uptime time.Duration
	if e.started.Load() {
		uptime = now.Sub(e.startedAt)
	}
	elapsed := phase.ElapsedDays(func() time.Time { return now }, e.startedAt)
	return Status{
		Running:            e.started.Load(),
		StartedAt:          e.startedAt,
		Uptime:             uptime,
		Phase:              e.phaseNow,
		DaysUntilNextPhase: phase.DaysUntilNextPhase(elapsed, e.cfg.Pruning, e.phaseNow),
		LiveCount:          e.liveCountLocked(),
		TotalKnown:         e.totalKnown,
		ChampionCount:      e.championCountLocked(),
		ProbeErrors:        e.probeErrors.Load(),
		Resources:          e.ledger.Stats(e.totalKnown),
		Config:             e.cfg,
	}
}

func (e *Engine) championCountLocked() int {
	n := 0
	for _, a := range e.agents {
		if a.IsActive && a.IsChampion {
			n++
		}
	}
	return n
}

// GetRankings returns a deep copy of the live agent scores, ordered by rank.
func (e *Engine) GetRankings() []models.AgentScore {
	e.mu.Lock()
	defer e.mu.Unlock()
	live := e.liveSliceLocked()
	out := make([]models.AgentScore, len(live))
	for i, a := range live {
		out[i] = cloneScore(a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// GetChampionInfo returns a deep copy of the current champion set, in rank order.
func (e *Engine) GetChampionInfo() []models.AgentScore {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.AgentScore, 0, e.championCountLocked())
	for _, a := range e.agents {
		if a.IsActive && a.IsChampion {
			out = append(out, cloneScore(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// GetPruningHistory returns a deep copy of the append-only audit log.
func (e *Engine) GetPruningHistory() []models.AuditRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.AuditRow, len(e.auditLog))
	copy(out, e.auditLog)
	return out
}

// ResourceSnapshot is the detailed view behind the resources endpoint: the
// aggregate Stats rollup plus the per-slot assignments it summarizes.
type ResourceSnapshot struct {
	resources.Stats
	Allocations   []resources.Assignment `json:"allocations"`
	TotalGPUSlots int                    `json:"total_gpu_slots"`
}

// GetResourceSnapshot returns the resource ledger's aggregate stats together
// with the sorted, deep-copied per-lane/per-GPU assignment detail.
func (e *Engine) GetResourceSnapshot() ResourceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	if lpg := e.ledger.LanesPerGPU(); lpg > 0 {
		total = (e.totalKnown + lpg - 1) / lpg
	}
	return ResourceSnapshot{
		Stats:         e.ledger.Stats(e.totalKnown),
		Allocations:   e.ledger.Snapshot(),
		TotalGPUSlots: total,
	}
}

// ForceEvaluation runs the metrics probe, scorer, and ranker (C3->C5)
// immediately without pruning, even if auto_prune is enabled. It fails if
// the engine is not running.
func (e *Engine) ForceEvaluation(ctx context.Context) ([]models.AgentScore, error) {
	if !e.started.Load() {
		return nil, models.ErrNotRunning
	}
	e.mu.Lock()
	now := e.clock()
	e.updatePhaseLocked(now)
	handles, err := e.accessor.GetAllAgents()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine: get_all_agents during force_evaluation: %w", err)
	}
	byID := make(map[string]AgentHandle, len(handles))
	for _, h := range handles {
		byID[h.ID()] = h
	}
	e.probeAndScoreLocked(ctx, byID, now)
	ranking.Rank(e.liveSliceLocked(), e.cfg.Pruning.OptimalKeepCount)
	live := e.liveSliceLocked()
	out := make([]models.AgentScore, len(live))
	for i, a := range live {
		out[i] = cloneScore(a)
	}
	e.syncFleetMetricsLocked()
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// ManualPrune evicts one agent immediately through the same stop+release+
// audit path as automatic pruning, with an operator-supplied reason.
// Unknown id -> ErrAgentNotFound; already pruned -> ErrAlreadyPruned.
func (e *Engine) ManualPrune(ctx context.Context, agentID, reason string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.index[agentID]
	if !ok {
		return Status{}, models.ErrAgentNotFound
	}
	agent := e.agents[idx]
	now := e.clock()
	log := func(msg, id string, err error) { e.logger.ErrorCtx(ctx, msg, "agent_id", id) }
	row, evicted := pruning.ManualPrune(agent, reason, e.phaseNow, now, pruning.StopFunc(e.stopAgent), e.ledger.Release, log)
	if !evicted {
		return Status{}, models.ErrAlreadyPruned
	}
	e.auditLog = append(e.auditLog, row)
	e.dispatchEvent(intevents.Event{
		Time: row.Time, Category: intevents.CategoryPruning, Type: "agent_manually_pruned",
		Fields: map[string]interface{}{"agent_id": row.AgentID, "reason": row.Reason},
	})
	e.syncFleetMetricsLocked()
	return Status{
		Running:            e.started.Load(),
		StartedAt:          e.startedAt,
		Phase:              e.phaseNow,
		DaysUntilNextPhase: phase.DaysUntilNextPhase(phase.ElapsedDays(func() time.Time { return now }, e.startedAt), e.cfg.Pruning, e.phaseNow),
		LiveCount:          e.liveCountLocked(),
		TotalKnown:         e.totalKnown,
		ChampionCount:      e.championCountLocked(),
		ProbeErrors:        e.probeErrors.Load(),
		Resources:          e.ledger.Stats(e.totalKnown),
		Config:             e.cfg,
	}, nil
}

func cloneScore(a *models.AgentScore) models.AgentScore {
	c := *a
	if a.PrunedAt != nil {
		t := *a.PrunedAt
		c.PrunedAt = &t
	}
	c.ScoreHistory = make([]models.ScorePoint, len(a.ScoreHistory))
	copy(c.ScoreHistory, a.ScoreHistory)
	return c
}
