package engine

import "github.com/99souls/atrwac/engine/models"

// AgentHandle is the capability interface an injected accessor hands back
// for each known agent. Stats produces a MetricRecord on demand; missing
// metrics map to zero in the handle, never in the engine.
type AgentHandle interface {
	ID() string
	Name() string
	Stats() (models.MetricRecord, error)
}

// AgentAccessor is the only read path the engine uses to observe agents. It
// is called once at start() to establish the fixed roster and once per tick
// thereafter to refresh metrics.
type AgentAccessor interface {
	GetAllAgents() ([]AgentHandle, error)
}

// StopAgentFunc requests that an agent be stopped (eviction). Called at most
// once per agent during its eviction; failures are logged but never retried
// within the same tick.
type StopAgentFunc func(agentID string) (bool, error)

// DeleteAgentFunc permanently removes an agent. The engine never calls this
// itself — manual_prune evicts through StopAgentFunc exactly like automatic
// pruning. The engine stores DeleteAgentFunc but exposes no method that
// invokes it, and the operator API has no delete route.
type DeleteAgentFunc func(agentID string) (bool, error)

// ComputeUsageProvider is an optional capability an AgentHandle may
// implement to report current GPU/compute utilization. Handles that don't
// implement it leave ComputeUsagePct at its last known value (0 before the
// first tick), matching the data model's "may be 0 if not supplied" clause.
type ComputeUsageProvider interface {
	ComputeUsagePct() float64
}
