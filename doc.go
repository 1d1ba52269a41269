// Package ticketflow turns tickets into pull requests with AI agents.
//
// A ticket moves through analysis, planning, plan review, implementation,
// and code review. Agents do the work at each step; humans approve the plan
// and the optional ticket update. The code is organized by concern:
//
//   - ticket: the ticket aggregate and its state machine
//   - message: typed messages exchanged between graphs and agents
//   - agent: the step registry and executor middleware
//   - graph: the planning, implementation, and code review graphs
//   - checkpoint: graph checkpoints and their in-memory store
//   - store: SQLite persistence for tickets, checkpoints, and leases
//   - workflow: the coordinator that drives a ticket's lifecycle
//   - steps: built-in git and pull request steps, and command agents
//   - git, pr, jira: repository, pull request, and tracker clients
//   - notify: log, webhook, and Slack notifications
//   - tenant: per-tenant automation settings
//   - auth, server: decision tokens and the decision API
//   - config, errors: layered configuration and CLI error messages
//   - testutil: test fixtures
//
// The ticketflow command in cmd/ticketflow wires these together.
//
// # Quick Start
//
//	db, _ := store.Open("ticketflow.db")
//	repo, _ := git.NewContext("/path/to/repo")
//
//	reg := agent.NewRegistry()
//	steps.Register(reg, steps.New(repo, provider), agents)
//
//	wf := workflow.New(reg, db.Checkpoints(), db.Tickets(),
//	    workflow.WithLeaser(db.Leases()),
//	    workflow.WithTenants(tenants),
//	)
//	wf.Start(ctx, "TK-421", "")
package ticketflow
