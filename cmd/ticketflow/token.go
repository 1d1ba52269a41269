package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage decision tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <ticket-id> <reviewer-id>",
	Short: "Issue a token that lets one reviewer decide on one ticket",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenIssue,
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	secret, err := settings.TokenSecretBytes()
	if err != nil {
		return err
	}
	tok, err := auth.IssueDecisionToken(auth.Config{Secret: secret, TTL: settings.TokenTTL}, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
