// Command atrwacctl is an operator CLI for a running atrwacd instance,
// talking to its HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "atrwacctl",
		Short: "Operator CLI for the Agentic Tuning engine",
	}
	root.PersistentFlags().String("addr", envOr("ATRWAC_ADDR", "http://localhost:8080"), "atrwacd base URL")
	root.PersistentFlags().String("token", os.Getenv("ATRWAC_TOKEN"), "bearer token")

	root.AddCommand(
		newStatusCmd(),
		newRankingsCmd(),
		newChampionsCmd(),
		newHistoryCmd(),
		newPruneCmd(),
		newConfigCmd(),
		newStartCmd(),
		newStopCmd(),
		newForceEvalCmd(),
		newTargetsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
