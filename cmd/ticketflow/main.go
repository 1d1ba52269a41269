// Command ticketflow drives tickets from analysis to an opened pull request.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tferrors "github.com/randalmurphal/ticketflow/errors"
)

var rootCmd = &cobra.Command{
	Use:   "ticketflow",
	Short: "Ticket to pull request workflow engine",
	Long: `ticketflow moves a ticket through analysis, planning, plan review,
implementation, pull request creation, and code review. Agents do the
work at each step; reviewers approve plans through the CLI or the
decision API served by 'ticketflow serve'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// overrides holds --set key=value pairs; they beat env and config files.
var overrides map[string]string

func init() {
	rootCmd.PersistentFlags().StringToStringVar(&overrides, "set", nil, "override a config key (key=value, repeatable)")

	rootCmd.AddCommand(serveCmd, ticketCmd, planCmd, reviewCmd, implementCmd,
		codeReviewCmd, checkpointsCmd, tokenCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		err = tferrors.Wrap(err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(tferrors.ExitCode(err))
	}
}
