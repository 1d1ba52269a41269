package git

import "errors"

// Git operation errors.
var (
	ErrNotGitRepo      = errors.New("not a git repository")
	ErrWorktreeExists  = errors.New("branch is checked out in another worktree")
	ErrBranchExists    = errors.New("branch already exists")
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrPushFailed      = errors.New("push failed")
)

// Error wraps a git command error with the operation that failed.
type Error struct {
	Op     string // e.g. "commit", "push"
	Output string // combined output, when the command produced any
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return e.Op + ": " + e.Output
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
