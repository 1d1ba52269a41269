package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/ticket"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Create and inspect tickets",
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create <ticket-id>",
	Short: "Start the workflow for a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketCreate,
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <ticket-id>",
	Short: "Show a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketShow,
}

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	Args:  cobra.NoArgs,
	RunE:  runTicketList,
}

var ticketAnalyzedCmd = &cobra.Command{
	Use:   "analyzed <ticket-id>",
	Short: "Record the analysis result for a ticket",
	Long: `Record the analysis result for a ticket in the Analyzing state.

With --proposed-update the ticket waits for a ticket update decision;
otherwise it is ready for 'ticketflow plan run'. --from reads a ticket_analyzed
message envelope from a file, or stdin with "-".`,
	Args: cobra.ExactArgs(1),
	RunE: runTicketAnalyzed,
}

var ticketUpdateCmd = &cobra.Command{
	Use:   "update-decision <ticket-id>",
	Short: "Approve or reject the proposed ticket update",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketUpdateDecision,
}

var ticketCancelCmd = &cobra.Command{
	Use:   "cancel <ticket-id>",
	Short: "Cancel a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketCancel,
}

var (
	tenantID       string
	listState      string
	analysisFrom   string
	analysisSum    string
	questions      []string
	proposedUpdate string
	approve        bool
	reject         bool
	updateReason   string
	cancelReason   string
)

func init() {
	ticketCmd.AddCommand(ticketCreateCmd, ticketShowCmd, ticketListCmd, ticketAnalyzedCmd, ticketUpdateCmd, ticketCancelCmd)

	ticketCreateCmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id (default: resolved from the tenants file)")

	ticketListCmd.Flags().StringVar(&listState, "state", "", "only tickets in this state")

	ticketAnalyzedCmd.Flags().StringVar(&analysisFrom, "from", "", "read a ticket_analyzed envelope from this file")
	ticketAnalyzedCmd.Flags().StringVar(&analysisSum, "summary", "", "analysis summary")
	ticketAnalyzedCmd.Flags().StringArrayVar(&questions, "question", nil, "open question (repeatable)")
	ticketAnalyzedCmd.Flags().StringVar(&proposedUpdate, "proposed-update", "", "proposed ticket update, which then needs a decision")

	ticketUpdateCmd.Flags().BoolVar(&approve, "approve", false, "approve the update")
	ticketUpdateCmd.Flags().BoolVar(&reject, "reject", false, "reject the update")
	ticketUpdateCmd.Flags().StringVar(&updateReason, "reason", "", "reason for the decision")
	ticketUpdateCmd.MarkFlagsOneRequired("approve", "reject")
	ticketUpdateCmd.MarkFlagsMutuallyExclusive("approve", "reject")

	ticketCancelCmd.Flags().StringVar(&cancelReason, "reason", "cancelled from cli", "cancellation reason")
}

func runTicketCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant := tenantID
	if tenant == "" && a.tenants != nil {
		cfg, err := a.tenants.GetConfigurationForTicket(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if cfg != nil {
			tenant = cfg.TenantID
		}
	}
	t, err := a.wf.Start(cmd.Context(), args[0], tenant)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), t.Record())
}

func runTicketShow(cmd *cobra.Command, args []string) error {
	a, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.db.Tickets().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), t.Record())
}

func runTicketList(cmd *cobra.Command, _ []string) error {
	state := ticket.WorkflowState(listState)
	if state != "" && !state.Valid() {
		return fmt.Errorf("unknown state %q", listState)
	}

	a, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tickets, err := a.db.Tickets().List(cmd.Context(), state)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTENANT\tSTATE\tUPDATED\tPR")
	for _, t := range tickets {
		pr := "-"
		if t.PRURL() != "" {
			pr = t.PRURL()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID(), t.TenantID(), t.State(),
			t.UpdatedAt().Format("2006-01-02 15:04"), pr)
	}
	return w.Flush()
}

func runTicketAnalyzed(cmd *cobra.Command, args []string) error {
	m := message.TicketAnalyzedMessage{
		TicketID:          args[0],
		Summary:           analysisSum,
		Questions:         questions,
		NeedsTicketUpdate: proposedUpdate != "",
		ProposedUpdate:    proposedUpdate,
	}
	if analysisFrom != "" {
		data, err := readFileArg(analysisFrom)
		if err != nil {
			return err
		}
		decoded, err := message.Unmarshal(data)
		if err != nil {
			return err
		}
		var ok bool
		if m, ok = decoded.(message.TicketAnalyzedMessage); !ok {
			return fmt.Errorf("%s: expected %s, got %s", analysisFrom, message.KindTicketAnalyzed, message.KindOf(decoded))
		}
		if m.TicketID != args[0] {
			return fmt.Errorf("%s: message is for ticket %s, not %s", analysisFrom, m.TicketID, args[0])
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.wf.CompleteAnalysis(cmd.Context(), m)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), t.Record())
}

func runTicketUpdateDecision(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.wf.DecideTicketUpdate(cmd.Context(), args[0], approve, updateReason)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), t.Record())
}

func runTicketCancel(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.wf.Cancel(cmd.Context(), args[0], cancelReason)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), t.Record())
}
