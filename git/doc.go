// Package git runs the git operations the workflow steps need: per-branch
// worktrees, staging, commits, and pushes.
//
// Core types:
//   - Context: a repository (or one of its worktrees) plus a CommandRunner
//   - CommandRunner: executes git; SequentialMockRunner scripts it in tests
//   - BranchNamer: plan and feature branch names for a ticket
//   - CommitMessage: conventional commit builder
//
// Example:
//
//	repo, err := git.NewContext("/srv/checkouts/api")
//	wt, err := repo.EnsureWorktree("plan/t-1", "main")
//	_ = wt.WriteFile("plans/T-1.md", plan)
//	res, err := wt.CommitFiles(msg, "plans/T-1.md")
//	_, err = wt.PushCurrent()
package git
