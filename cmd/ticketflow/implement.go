package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/workflow"
)

var implementCmd = &cobra.Command{
	Use:   "implement <ticket-id>",
	Short: "Implement an approved plan and open a pull request",
	Long: `Run the implementation graph for a ticket whose plan is approved.
Use this when the tenant does not implement automatically after approval,
or when the approval was recorded but implementation did not start.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgress(cmd, args[0], (*workflow.Coordinator).Implement)
	},
}

var codeReviewCmd = &cobra.Command{
	Use:   "code-review",
	Short: "Review the pull request and submit fixes",
}

var codeReviewRunCmd = &cobra.Command{
	Use:   "run <ticket-id>",
	Short: "Run the code review graph on the opened pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgress(cmd, args[0], (*workflow.Coordinator).RequestCodeReview)
	},
}

var codeReviewFixCmd = &cobra.Command{
	Use:   "fix <ticket-id>",
	Short: "Implement the review findings and review again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgress(cmd, args[0], (*workflow.Coordinator).SubmitFixes)
	},
}

func init() {
	codeReviewCmd.AddCommand(codeReviewRunCmd, codeReviewFixCmd)
}

type progressFunc func(c *workflow.Coordinator, ctx context.Context, ticketID string) (workflow.Progress, error)

func runProgress(cmd *cobra.Command, ticketID string, op progressFunc) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := op(a.wf, cmd.Context(), ticketID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), viewProgress(p))
}
