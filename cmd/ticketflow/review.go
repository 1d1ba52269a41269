package main

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/auth"
	tferrors "github.com/randalmurphal/ticketflow/errors"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Assign plan reviewers and record decisions",
}

var reviewAssignCmd = &cobra.Command{
	Use:   "assign <ticket-id>",
	Short: "Assign reviewers to the posted plan",
	Long: `Assign reviewers to the posted plan. Without --required the tenant's
configured reviewers are used. With --tokens a decision token is printed
for every reviewer, for use with the decision API.`,
	Args: cobra.ExactArgs(1),
	RunE: runReviewAssign,
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide <ticket-id>",
	Short: "Record one reviewer's decision on the plan",
	Long: `Record one reviewer's decision. Once every required reviewer approved,
the plan is approved and implementation starts if the tenant enables it.
A rejection sends the plan back to planning with the reviewer's feedback.`,
	Args: cobra.ExactArgs(1),
	RunE: runReviewDecide,
}

var (
	requiredReviewers []string
	optionalReviewers []string
	printTokens       bool

	reviewerID     string
	reviewApprove  bool
	reviewReject   bool
	reviewDecision string
	regenerate     bool
)

func init() {
	reviewCmd.AddCommand(reviewAssignCmd, reviewDecideCmd)

	reviewAssignCmd.Flags().StringSliceVar(&requiredReviewers, "required", nil, "required reviewers (comma separated)")
	reviewAssignCmd.Flags().StringSliceVar(&optionalReviewers, "optional", nil, "optional reviewers (comma separated)")
	reviewAssignCmd.Flags().BoolVar(&printTokens, "tokens", false, "print a decision token per reviewer")

	reviewDecideCmd.Flags().StringVar(&reviewerID, "reviewer", "", "reviewer id (required)")
	reviewDecideCmd.Flags().BoolVar(&reviewApprove, "approve", false, "approve the plan")
	reviewDecideCmd.Flags().BoolVar(&reviewReject, "reject", false, "reject the plan")
	reviewDecideCmd.Flags().StringVar(&reviewDecision, "decision", "", "feedback for the planner")
	reviewDecideCmd.Flags().BoolVar(&regenerate, "regenerate", false, "on rejection, discard the plan instead of revising it")
	reviewDecideCmd.MarkFlagRequired("reviewer")
	reviewDecideCmd.MarkFlagsOneRequired("approve", "reject")
	reviewDecideCmd.MarkFlagsMutuallyExclusive("approve", "reject")
}

type assignView struct {
	Ticket ticket.Record     `json:"ticket"`
	Tokens map[string]string `json:"tokens,omitempty"`
}

func runReviewAssign(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	required, optional := requiredReviewers, optionalReviewers
	if len(required) == 0 && a.tenants != nil {
		cfg, err := a.tenants.GetConfigurationForTicket(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if cfg != nil {
			required, optional = cfg.RequiredReviewers, cfg.OptionalReviewers
		}
	}

	// Check the secret before changing the ticket.
	var tokens auth.Config
	if printTokens {
		secret, err := a.settings.TokenSecretBytes()
		if err != nil {
			return err
		}
		tokens = auth.Config{Secret: secret, TTL: a.settings.TokenTTL}
	}

	t, err := a.wf.AssignReviewers(cmd.Context(), args[0], required, optional)
	if err != nil {
		return err
	}

	view := assignView{Ticket: t.Record()}
	if printTokens {
		view.Tokens = make(map[string]string)
		for _, r := range t.PlanReviews() {
			tok, err := auth.IssueDecisionToken(tokens, t.ID(), r.ReviewerID)
			if err != nil {
				return err
			}
			view.Tokens[r.ReviewerID] = tok
		}
	}
	return printJSON(cmd.OutOrStdout(), view)
}

func runReviewDecide(cmd *cobra.Command, args []string) error {
	if reviewReject && reviewDecision == "" {
		return tferrors.Usage("--decision is required when rejecting")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.wf.RecordReview(cmd.Context(), args[0], workflow.ReviewDecision{
		ReviewerID:           reviewerID,
		Approved:             reviewApprove,
		Decision:             reviewDecision,
		RegenerateCompletely: regenerate,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), viewProgress(p))
}
