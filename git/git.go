package git

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Context runs git commands against one repository, or one of its worktrees.
type Context struct {
	repoPath    string // main repository
	worktreeDir string // relative to repoPath
	workDir     string // where commands run; repoPath unless in a worktree
	remote      string
	runner      CommandRunner
}

// Option configures Context.
type Option func(*Context)

// NewContext opens the repository at repoPath.
func NewContext(repoPath string, opts ...Option) (*Context, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	g := &Context{
		repoPath:    absPath,
		worktreeDir: ".worktrees",
		workDir:     absPath,
		remote:      "origin",
		runner:      NewExecRunner(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if _, err := g.runGit("rev-parse", "--git-dir"); err != nil {
		return nil, ErrNotGitRepo
	}
	return g, nil
}

// WithWorktreeDir sets where worktrees are created, relative to the
// repository root. Default is ".worktrees".
func WithWorktreeDir(dir string) Option {
	return func(g *Context) {
		g.worktreeDir = dir
	}
}

// WithRunner replaces the command runner.
func WithRunner(runner CommandRunner) Option {
	return func(g *Context) {
		g.runner = runner
	}
}

// WithRemote sets the remote used for pushes. Default is "origin".
func WithRemote(name string) Option {
	return func(g *Context) {
		g.remote = name
	}
}

// RepoPath returns the main repository path.
func (g *Context) RepoPath() string { return g.repoPath }

// WorkDir returns the directory commands run in.
func (g *Context) WorkDir() string { return g.workDir }

// Remote returns the push remote name.
func (g *Context) Remote() string { return g.remote }

// InWorktree returns a Context that runs commands in worktreePath.
func (g *Context) InWorktree(worktreePath string) *Context {
	c := *g
	c.workDir = worktreePath
	return &c
}

// CurrentBranch returns the checked out branch.
func (g *Context) CurrentBranch() (string, error) {
	branch, err := g.runGit("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &Error{Op: "get current branch", Err: err}
	}
	return branch, nil
}

// Checkout switches to ref.
func (g *Context) Checkout(ref string) error {
	if _, err := g.runGit("checkout", ref); err != nil {
		return &Error{Op: "checkout", Err: err}
	}
	return nil
}

// CreateBranch creates a branch at HEAD.
func (g *Context) CreateBranch(name string) error {
	if _, err := g.runGit("branch", name); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrBranchExists
		}
		return &Error{Op: "create branch", Err: err}
	}
	return nil
}

// BranchExists reports whether a local branch or ref resolves.
func (g *Context) BranchExists(name string) bool {
	_, err := g.runGit("rev-parse", "--verify", "--quiet", name)
	return err == nil
}

// WriteFile writes data to a path relative to the work directory, creating
// parent directories.
func (g *Context) WriteFile(rel string, data []byte) error {
	if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
		return fmt.Errorf("write %s: path must stay inside the repository", rel)
	}
	path := filepath.Join(g.workDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Stage adds files to the index.
func (g *Context) Stage(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	if _, err := g.runGit(args...); err != nil {
		return &Error{Op: "stage files", Err: err}
	}
	return nil
}

// StageAll stages every change (git add -A).
func (g *Context) StageAll() error {
	if _, err := g.runGit("add", "-A"); err != nil {
		return &Error{Op: "stage all", Err: err}
	}
	return nil
}

// Commit commits the index. It returns ErrNothingToCommit when the index
// matches HEAD.
func (g *Context) Commit(message string) error {
	output, err := g.runGit("commit", "-m", message)
	if err != nil {
		if strings.Contains(output, "nothing to commit") ||
			strings.Contains(err.Error(), "nothing to commit") {
			return ErrNothingToCommit
		}
		return &Error{Op: "commit", Output: output, Err: err}
	}
	return nil
}

// Push pushes branch to remote, optionally setting upstream.
func (g *Context) Push(remote, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, branch)

	if _, err := g.runGit(args...); err != nil {
		return &Error{Op: "push", Err: fmt.Errorf("%w: %w", ErrPushFailed, err)}
	}
	return nil
}

// HeadCommit returns the HEAD commit SHA.
func (g *Context) HeadCommit() (string, error) {
	sha, err := g.runGit("rev-parse", "HEAD")
	if err != nil {
		return "", &Error{Op: "get HEAD commit", Err: err}
	}
	return sha, nil
}

// IsBranchPushed reports whether remote has a tracking ref for branch.
func (g *Context) IsBranchPushed(branch string) bool {
	_, err := g.runGit("rev-parse", "--verify", "--quiet", g.remote+"/"+branch)
	return err == nil
}

// GetRemoteURL returns the URL of remote.
func (g *Context) GetRemoteURL(remote string) (string, error) {
	url, err := g.runGit("remote", "get-url", remote)
	if err != nil {
		return "", &Error{Op: "get remote URL", Err: err}
	}
	return url, nil
}

// =============================================================================
// Combined operations
// =============================================================================

// CommitResult describes a commit.
type CommitResult struct {
	SHA     string
	Branch  string
	Message string
	Date    time.Time
}

// PushResult describes a push.
type PushResult struct {
	Remote      string
	Branch      string
	SHA         string
	SetUpstream bool
	URL         string
}

// CommitAll stages everything and commits. It returns ErrNothingToCommit when
// there are no changes.
func (g *Context) CommitAll(message string) (*CommitResult, error) {
	if err := g.StageAll(); err != nil {
		return nil, err
	}
	if err := g.Commit(message); err != nil {
		return nil, err
	}
	return g.describeHead(message)
}

// CommitFiles stages only files and commits.
func (g *Context) CommitFiles(message string, files ...string) (*CommitResult, error) {
	if err := g.Stage(files...); err != nil {
		return nil, err
	}
	if err := g.Commit(message); err != nil {
		return nil, err
	}
	return g.describeHead(message)
}

func (g *Context) describeHead(message string) (*CommitResult, error) {
	sha, err := g.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}
	branch, err := g.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &CommitResult{
		SHA:     sha,
		Branch:  branch,
		Message: message,
		Date:    time.Now(),
	}, nil
}

// PushCurrent pushes the current branch to the configured remote, setting
// upstream the first time.
func (g *Context) PushCurrent() (*PushResult, error) {
	branch, err := g.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("get current branch: %w", err)
	}

	setUpstream := !g.IsBranchPushed(branch)
	if err := g.Push(g.remote, branch, setUpstream); err != nil {
		return nil, err
	}

	sha, err := g.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}
	url, _ := g.GetRemoteURL(g.remote) // informational only

	return &PushResult{
		Remote:      g.remote,
		Branch:      branch,
		SHA:         sha,
		SetUpstream: setUpstream,
		URL:         url,
	}, nil
}

func (g *Context) runGit(args ...string) (string, error) {
	return g.runner.Run(g.workDir, "git", args...)
}

var (
	unsafeDirChars = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRuns     = regexp.MustCompile(`-+`)
)

// SanitizeBranchName converts a branch name to a safe directory name.
func SanitizeBranchName(branch string) string {
	safe := strings.ToLower(strings.ReplaceAll(branch, "/", "-"))
	safe = unsafeDirChars.ReplaceAllString(safe, "")
	safe = hyphenRuns.ReplaceAllString(safe, "-")
	return strings.Trim(safe, "-")
}
