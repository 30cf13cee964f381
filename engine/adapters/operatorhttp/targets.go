package operatorhttp

import "net/http"

// targetInfo is the static, human-readable metadata the original Python
// implementation exposed per optimisation target purely for operator
// discovery — no scoring behavior, just a lookup table.
type targetInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PrimaryWeight  string `json:"primary_weight"`
}

var targetCatalog = []targetInfo{
	{ID: "max_profit", Name: "Max Profit", Description: "Favors absolute profit above all else.", PrimaryWeight: "profit"},
	{ID: "max_growth_pct", Name: "Max Growth %", Description: "Favors percentage account growth over raw profit.", PrimaryWeight: "profit"},
	{ID: "fastest_speed", Name: "Fastest Speed", Description: "Favors agents that close trades quickly.", PrimaryWeight: "speed"},
	{ID: "max_win_rate", Name: "Max Win Rate", Description: "Favors consistency of winning trades over size.", PrimaryWeight: "win_rate"},
	{ID: "min_drawdown", Name: "Min Drawdown", Description: "Penalizes agents with large peak-to-trough losses.", PrimaryWeight: "drawdown"},
	{ID: "best_sharpe", Name: "Best Sharpe", Description: "Favors risk-adjusted return over raw profit.", PrimaryWeight: "efficiency"},
	{ID: "sentiment_aligned", Name: "Sentiment Aligned", Description: "Favors agents whose trades track news/sentiment signal accuracy.", PrimaryWeight: "sentiment"},
	{ID: "custom", Name: "Custom", Description: "Operator-supplied weights; no preset applied.", PrimaryWeight: "n/a"},
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, targetCatalog)
}
