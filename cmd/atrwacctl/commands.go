package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type statusView struct {
	Running            bool   `json:"running"`
	Phase              string `json:"phase"`
	DaysUntilNextPhase int    `json:"days_until_next_phase"`
	LiveCount          int    `json:"live_count"`
	TotalKnown         int    `json:"total_known"`
	ChampionCount      int    `json:"champion_count"`
	ProbeErrors        uint64 `json:"probe_errors"`
}

type scoreView struct {
	AgentID    string  `json:"agent_id"`
	Name       string  `json:"name"`
	FinalScore float64 `json:"final_score"`
	Rank       int     `json:"rank"`
	IsChampion bool    `json:"is_champion"`
}

type auditView struct {
	Time       time.Time `json:"time"`
	AgentID    string    `json:"agent_id"`
	AgentName  string    `json:"agent_name"`
	Reason     string    `json:"reason"`
	FinalScore float64   `json:"final_score"`
	Rank       int       `json:"rank"`
	Phase      string    `json:"phase"`
}

type targetView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PrimaryWeight string `json:"primary_weight"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s statusView
			if err := clientFromCmd(cmd).do("GET", "/api/v1/status", nil, &s); err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Field", "Value")
			table.Append("running", fmt.Sprint(s.Running))
			table.Append("phase", s.Phase)
			table.Append("days_until_next_phase", fmt.Sprint(s.DaysUntilNextPhase))
			table.Append("live_count", fmt.Sprint(s.LiveCount))
			table.Append("total_known", fmt.Sprint(s.TotalKnown))
			table.Append("champion_count", fmt.Sprint(s.ChampionCount))
			table.Append("probe_errors", fmt.Sprint(s.ProbeErrors))
			table.Render()
			return nil
		},
	}
}

func renderScores(scores []scoreView) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Rank", "Agent", "Name", "Score", "Champion")
	for _, s := range scores {
		table.Append(fmt.Sprint(s.Rank), s.AgentID, s.Name, fmt.Sprintf("%.2f", s.FinalScore), fmt.Sprint(s.IsChampion))
	}
	table.Render()
	return nil
}

func newRankingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rankings",
		Short: "Show current agent rankings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scores []scoreView
			if err := clientFromCmd(cmd).do("GET", "/api/v1/rankings", nil, &scores); err != nil {
				return err
			}
			return renderScores(scores)
		},
	}
}

func newChampionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "champions",
		Short: "Show the current champion set",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scores []scoreView
			if err := clientFromCmd(cmd).do("GET", "/api/v1/champions", nil, &scores); err != nil {
				return err
			}
			return renderScores(scores)
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the pruning audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []auditView
			if err := clientFromCmd(cmd).do("GET", "/api/v1/pruning-history", nil, &rows); err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Time", "Agent", "Reason", "Score", "Rank", "Phase")
			for _, row := range rows {
				table.Append(row.Time.Format(time.RFC3339), row.AgentID, row.Reason, fmt.Sprintf("%.2f", row.FinalScore), fmt.Sprint(row.Rank), row.Phase)
			}
			table.Render()
			return nil
		},
	}
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List selectable optimisation targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			var targets []targetView
			if err := clientFromCmd(cmd).do("GET", "/api/v1/targets", nil, &targets); err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("ID", "Name", "Primary Weight", "Description")
			for _, t := range targets {
				table.Append(t.ID, t.Name, t.PrimaryWeight, t.Description)
			}
			table.Render()
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "prune <agent-id>",
		Short: "Manually prune one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/agents/%s/prune?reason=%s", args[0], reason)
			var status statusView
			if err := clientFromCmd(cmd).do("POST", path, nil, &status); err != nil {
				return err
			}
			fmt.Printf("pruned %s; live_count now %d\n", args[0], status.LiveCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "operator_manual_prune", "reason recorded in the audit log")
	return cmd
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the engine's evaluation loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientFromCmd(cmd).do("POST", "/api/v1/start", nil, nil)
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the engine's evaluation loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientFromCmd(cmd).do("POST", "/api/v1/stop", nil, nil)
		},
	}
}

func newForceEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force-eval",
		Short: "Force an immediate scoring pass without pruning",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scores []scoreView
			if err := clientFromCmd(cmd).do("POST", "/api/v1/force-evaluation", nil, &scores); err != nil {
				return err
			}
			return renderScores(scores)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read the engine's live configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current config as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw map[string]interface{}
			if err := clientFromCmd(cmd).do("GET", "/api/v1/config", nil, &raw); err != nil {
				return err
			}
			fmt.Printf("%+v\n", raw)
			return nil
		},
	})
	return cmd
}
