package pr

import "errors"

// Pull request errors.
var (
	ErrNoProvider      = errors.New("no pull request provider configured")
	ErrUnknownProvider = errors.New("unknown git provider")
	ErrExists          = errors.New("pull request already exists for this branch")
	ErrNoChanges       = errors.New("no changes between branches")
	ErrMissingHead     = errors.New("pull request head branch is required")
)
