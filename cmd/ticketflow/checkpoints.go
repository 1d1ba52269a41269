package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/graph"
	"github.com/randalmurphal/ticketflow/server"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints <ticket-id> <graph>",
	Short: "Show a ticket's graph checkpoints",
	Long: fmt.Sprintf(`Show the latest checkpoint of a graph, or its full history with --history.
Graphs: %s, %s, %s.`, graph.PlanningGraphID, graph.ImplementationGraphID, graph.CodeReviewGraphID),
	Args: cobra.ExactArgs(2),
	RunE: runCheckpoints,
}

var history bool

func init() {
	checkpointsCmd.Flags().BoolVar(&history, "history", false, "show every checkpoint, oldest first")
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	ticketID, graphID := args[0], args[1]

	a, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cps := a.db.Checkpoints()
	if history {
		all, err := cps.GetCheckpointHistory(cmd.Context(), ticketID, graphID)
		if err != nil {
			return err
		}
		views := make([]server.CheckpointView, 0, len(all))
		for _, cp := range all {
			views = append(views, server.NewCheckpointView(cp))
		}
		return printJSON(cmd.OutOrStdout(), views)
	}

	cp, err := cps.LoadCheckpoint(cmd.Context(), ticketID, graphID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no %s checkpoint for %s", graphID, ticketID)
	}
	return printJSON(cmd.OutOrStdout(), server.NewCheckpointView(*cp))
}
