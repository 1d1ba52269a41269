// Package workflow coordinates a ticket's whole lifecycle on top of the
// graph package.
//
// A Coordinator owns the ticket state machine and decides when each graph
// runs:
//
//   - Start, CompleteAnalysis, DecideTicketUpdate: analysis and optional
//     ticket update review.
//   - RunPlanning: the planning graph, up to a posted plan under review.
//   - AssignReviewers, RecordReview: the multi-reviewer quorum. Quorum
//     approves the plan and runs the implementation graph; the first
//     rejection replans.
//   - RequestCodeReview, SubmitFixes: the code review loop.
//   - Cancel.
//
// Operations on one ticket are serialized by a lease (Leaser). A second
// concurrent operation returns ErrTicketBusy instead of waiting.
//
// Example usage:
//
//	c := workflow.New(exec, db.Checkpoints(), db.Tickets(),
//	    workflow.WithLeaser(db.Leases()),
//	    workflow.WithTenants(tenants),
//	)
//	if _, err := c.Start(ctx, "TK-421", ""); err != nil { ... }
//	progress, err := c.RunPlanning(ctx, message.AnswersReceivedMessage{TicketID: "TK-421"})
package workflow
