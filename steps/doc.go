// Package steps implements the agent steps that move artifacts rather than
// think: committing plans and code, opening the pull request, posting to the
// ticket tracker, and closing the run. Reasoning steps (analysis, planning,
// implementation, code review) run as external commands through
// CommandAgent.
//
// Register wires both kinds into an agent.Registry:
//
//	s := steps.New(repo, provider, steps.WithTracker(steps.NewJiraTracker(client)))
//	agents, err := steps.LoadAgents("agents.yaml")
//	reg := agent.NewRegistry()
//	steps.Register(reg, s, agents)
package steps
