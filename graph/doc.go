// Package graph holds the three checkpointed workflow graphs that move a
// ticket from clarified requirements to a reviewed pull request:
//
//   - PlanningGraph produces a plan and suspends for human approval.
//   - ImplementationGraph implements an approved plan and opens a pull request.
//   - CodeReviewGraph reviews the pull request and loops through fix rounds.
//
// Each graph is a flowgraph pipeline whose nodes call agent steps through an
// agent.Executor and persist progress through a checkpoint.Store. Execute
// starts from a graph's entry message; Resume continues from the latest
// active checkpoint when that checkpoint is listed in the graph's
// ResumeTable.
//
// Domain outcomes are reported in Result, including failures and rejected
// input. The error return carries only checkpoint store failures:
//
//	res, err := g.Execute(ctx, msg)
//	if err != nil {
//	    // store unavailable; retry the call or fail the workflow
//	}
//	switch {
//	case res.Success:
//	case res.Suspended():
//	default:
//	    log.Printf("graph failed in %s: %v", res.State, res.Err)
//	}
package graph
