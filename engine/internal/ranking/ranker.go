// Package ranking sorts live agents by score and marks the champion set.
package ranking

import (
	"math"
	"sort"

	"github.com/99souls/atrwac/engine/models"
)

const tieEpsilon = 1e-9

// Rank sorts live in place by (score DESC, tie-break total_profit DESC, tie-
// break lane_id ASC), assigns 1-based Rank, resets IsChampion for all live
// agents then sets it true for the first min(championCount, len(live)).
// Returns the ids in rank order (the champion list is the prefix).
func Rank(live []*models.AgentScore, championCount int) []string {
	sort.SliceStable(live, func(i, j int) bool {
		a, b := live[i], live[j]
		if math.Abs(a.FinalScore-b.FinalScore) > tieEpsilon {
			return a.FinalScore > b.FinalScore
		}
		if a.LastMetric.TotalProfit != b.LastMetric.TotalProfit {
			return a.LastMetric.TotalProfit > b.LastMetric.TotalProfit
		}
		return a.Assignment.LaneID < b.Assignment.LaneID
	})

	order := make([]string, len(live))
	champions := championCount
	if champions > len(live) {
		champions = len(live)
	}
	if champions < 0 {
		champions = 0
	}
	for i, a := range live {
		a.Rank = i + 1
		a.IsChampion = i < champions
		order[i] = a.AgentID
	}
	return order
}
