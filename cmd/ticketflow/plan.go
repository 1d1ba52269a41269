package main

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/message"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run planning for a ticket",
}

var planRunCmd = &cobra.Command{
	Use:   "run <ticket-id>",
	Short: "Generate, commit, and post a plan",
	Long: `Run the planning graph with the given answers. The graph stops once
the plan is posted. Reviewers configured for the ticket's tenant are
assigned automatically; otherwise assign them with 'ticketflow review assign'.
For a ticket left in plan_rejected by an interrupted re-plan, the re-plan is
continued from the recorded rejection and the answers are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var (
	answers     map[string]string
	planContext string
)

func init() {
	planCmd.AddCommand(planRunCmd)

	planRunCmd.Flags().StringToStringVar(&answers, "answer", nil, "answer to an analysis question (question=answer, repeatable)")
	planRunCmd.Flags().StringVar(&planContext, "context", "", "extra context for the planner")
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.wf.RunPlanning(cmd.Context(), message.AnswersReceivedMessage{
		TicketID: args[0],
		Answers:  answers,
		Context:  planContext,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), viewProgress(p))
}
