// Package demoagents provides a dependency-free AgentAccessor that seeds a
// synthetic fleet of trading-bot agents with deterministic, slowly drifting
// metrics — enough for atrwacd to boot and demonstrate a full phase/pruning
// cycle with no external bot manager wired up.
package demoagents

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/99souls/atrwac/engine"
	"github.com/99souls/atrwac/engine/models"
)

// Fleet is an in-memory, seeded AgentAccessor. Each call to Stats for a
// given agent nudges that agent's metrics along a fixed random walk, seeded
// per-agent so a run is reproducible given the same seed and tick count.
type Fleet struct {
	mu     sync.Mutex
	agents []*demoAgent
}

// New builds a Fleet of n synthetic agents with ids bot-0..bot-(n-1) (named
// "Demo Bot 0".."Demo Bot n-1"), with
// per-agent metric walks seeded from seed so results are reproducible.
func New(n int, seed int64) *Fleet {
	rng := rand.New(rand.NewSource(seed))
	f := &Fleet{}
	for i := 0; i < n; i++ {
		f.agents = append(f.agents, &demoAgent{
			id:   fmt.Sprintf("bot-%d", i),
			name: fmt.Sprintf("Demo Bot %d", i),
			// Agents are seeded with varying quality so pruning has a clear
			// worst-to-best gradient to work through.
			qualityBias: rng.Float64(),
			rng:         rand.New(rand.NewSource(seed + int64(i) + 1)),
		})
	}
	return f
}

// GetAllAgents implements engine.AgentAccessor.
func (f *Fleet) GetAllAgents() ([]engine.AgentHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.AgentHandle, 0, len(f.agents))
	for _, a := range f.agents {
		if a.stopped {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// StopAgent implements engine.StopAgentFunc.
func (f *Fleet) StopAgent(agentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agents {
		if a.id == agentID {
			a.stopped = true
			return true, nil
		}
	}
	return false, nil
}

// DeleteAgent implements engine.DeleteAgentFunc; removes the agent entirely.
func (f *Fleet) DeleteAgent(agentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.agents {
		if a.id == agentID {
			f.agents = append(f.agents[:i], f.agents[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type demoAgent struct {
	id          string
	name        string
	qualityBias float64
	stopped     bool

	mu    sync.Mutex
	rng   *rand.Rand
	ticks int

	cumProfit float64
	trades    int
}

func (a *demoAgent) ID() string   { return a.id }
func (a *demoAgent) Name() string { return a.name }

// ComputeUsagePct implements engine.ComputeUsageProvider.
func (a *demoAgent) ComputeUsagePct() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return 10 + 40*a.qualityBias
}

// Stats implements engine.AgentHandle, advancing this agent's simulated
// trading history by one step and deriving a MetricRecord from it.
func (a *demoAgent) Stats() (models.MetricRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ticks++
	step := (a.rng.Float64() - 0.35 + a.qualityBias*0.5) * 200
	a.cumProfit = math.Max(0, a.cumProfit+step)
	a.trades += 1 + a.rng.Intn(3)

	winRate := 0.35 + 0.4*a.qualityBias + 0.05*a.rng.Float64()
	if winRate > 1 {
		winRate = 1
	}
	sharpe := -1 + 4*a.qualityBias + 0.3*(a.rng.Float64()-0.5)
	drawdown := 0.4 * (1 - a.qualityBias) * a.rng.Float64()
	sentiment := 0.3 + 0.6*a.qualityBias

	return models.MetricRecord{
		TotalProfit:             a.cumProfit,
		ProfitPct:                a.cumProfit / 10000,
		WinRate:                  winRate,
		TotalTrades:              a.trades,
		AvgTradeDurationMinutes:  5 + 45*(1-a.qualityBias),
		MaxDrawdown:              drawdown,
		SharpeRatio:              sharpe,
		SentimentAccuracy:        sentiment,
	}, nil
}
