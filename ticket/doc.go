// Package ticket holds the Ticket aggregate: the workflow state machine a
// ticket moves through and the multi-reviewer quorum that gates plan approval.
//
// The happy path is
//
//	Triggered → Analyzing → [ticket update review] → Planning → PlanPosted →
//	PlanUnderReview → PlanApproved → Implementing → PRCreated → InReview → Completed
//
// with Failed and Cancelled reachable from every non-terminal state.
// CompletedAt is set exactly when the ticket reaches a terminal state.
//
// Quorum rules:
//   - a ticket with no reviewers always has sufficient approvals
//   - only required reviewers count toward RequiredApprovalCount
//   - GetRejectionDetails reports the first rejected review only
package ticket
