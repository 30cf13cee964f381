package ranking

import (
	"testing"

	"github.com/99souls/atrwac/engine/models"
)

func agent(id string, score, profit float64, lane int) *models.AgentScore {
	return &models.AgentScore{
		AgentID:    id,
		FinalScore: score,
		LastMetric: models.MetricRecord{TotalProfit: profit},
		Assignment: models.ResourceAssignment{LaneID: lane},
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	live := []*models.AgentScore{agent("a", 10, 0, 0), agent("b", 30, 0, 1), agent("c", 20, 0, 2)}
	order := Rank(live, 1)
	if order[0] != "b" || order[1] != "c" || order[2] != "a" {
		t.Fatalf("expected b,c,a got %v", order)
	}
}

func TestRankAssigns1BasedRanksAndChampions(t *testing.T) {
	live := []*models.AgentScore{agent("a", 10, 0, 0), agent("b", 30, 0, 1), agent("c", 20, 0, 2)}
	Rank(live, 2)
	byID := map[string]*models.AgentScore{}
	for _, a := range live {
		byID[a.AgentID] = a
	}
	if byID["b"].Rank != 1 || !byID["b"].IsChampion {
		t.Fatalf("expected b to be rank 1 and champion")
	}
	if byID["c"].Rank != 2 || !byID["c"].IsChampion {
		t.Fatalf("expected c to be rank 2 and champion")
	}
	if byID["a"].Rank != 3 || byID["a"].IsChampion {
		t.Fatalf("expected a to be rank 3 and not champion")
	}
}

func TestRankTieBreaksByTotalProfitThenLaneID(t *testing.T) {
	live := []*models.AgentScore{
		agent("lane5", 10, 100, 5),
		agent("lane1", 10, 200, 1),
		agent("lane2", 10, 200, 2),
	}
	order := Rank(live, 0)
	// equal score (within epsilon): higher total_profit wins; profit tie -> lower lane_id wins
	if order[0] != "lane1" || order[1] != "lane2" || order[2] != "lane5" {
		t.Fatalf("expected lane1,lane2,lane5 got %v", order)
	}
}

func TestRankChampionCountClampsToLiveLength(t *testing.T) {
	live := []*models.AgentScore{agent("a", 1, 0, 0)}
	Rank(live, 5)
	if !live[0].IsChampion {
		t.Fatalf("expected sole agent to be champion when championCount exceeds live length")
	}
}

func TestRankNegativeChampionCountMarksNoChampions(t *testing.T) {
	live := []*models.AgentScore{agent("a", 1, 0, 0), agent("b", 2, 0, 1)}
	Rank(live, -1)
	for _, a := range live {
		if a.IsChampion {
			t.Fatalf("expected no champions for negative championCount")
		}
	}
}
