package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeInfo is one entry of git worktree list.
type WorktreeInfo struct {
	Path   string
	Branch string
	Commit string
}

// WorktreePath returns where the worktree for branch lives.
func (g *Context) WorktreePath(branch string) string {
	return filepath.Join(g.repoPath, g.worktreeDir, SanitizeBranchName(branch))
}

// EnsureWorktree returns a Context working in branch's worktree, creating
// the worktree (and the branch at base, when missing) on first use.
// An empty base means HEAD.
func (g *Context) EnsureWorktree(branch, base string) (*Context, error) {
	path := g.WorktreePath(branch)
	if _, err := os.Stat(path); err == nil {
		return g.InWorktree(path), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create worktrees dir: %w", err)
	}

	if base == "" {
		base = "HEAD"
	}
	var err error
	if g.BranchExists(branch) {
		_, err = g.runGit("worktree", "add", path, branch)
	} else {
		_, err = g.runGit("worktree", "add", "-b", branch, path, base)
	}
	if err != nil {
		if strings.Contains(err.Error(), "already checked out") ||
			strings.Contains(err.Error(), "already used by worktree") {
			return nil, fmt.Errorf("%w: %s", ErrWorktreeExists, branch)
		}
		return nil, &Error{Op: "create worktree", Err: err}
	}
	return g.InWorktree(path), nil
}

// CleanupWorktree removes a worktree, forcing removal when it has changes.
func (g *Context) CleanupWorktree(worktreePath string) error {
	if _, err := g.runGit("worktree", "remove", worktreePath); err != nil {
		if _, err := g.runGit("worktree", "remove", "--force", worktreePath); err != nil {
			return &Error{Op: "cleanup worktree", Err: err}
		}
	}
	return nil
}

// ListWorktrees returns all worktrees, the main checkout included.
func (g *Context) ListWorktrees() ([]WorktreeInfo, error) {
	output, err := g.runGit("worktree", "list", "--porcelain")
	if err != nil {
		return nil, &Error{Op: "list worktrees", Err: err}
	}

	var worktrees []WorktreeInfo
	var current WorktreeInfo
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = WorktreeInfo{}
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			current.Branch = "(detached)"
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}
	return worktrees, nil
}
