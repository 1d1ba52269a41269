// Package agent defines how workflow graphs call out to agent steps.
//
// An Executor takes a step type, an input message, and a per-run Context and
// returns the step's output message. Graphs never care how the output is
// produced: a Registry dispatches to plain Go handlers, package steps
// supplies handlers that commit, open pull requests, or run a subprocess.
//
// Middleware composes around any Executor:
//
//	exec := agent.Chain(registry,
//	    agent.WithTracing(nil),
//	    agent.WithMetrics(),
//	    agent.WithLogging(logger),
//	)
//
// Model selection follows step weight: planning, analysis, and review run on
// the thinking tier, implementation on the default tier, plumbing steps on
// the fast tier. Context.Model overrides the choice for a single run.
package agent
