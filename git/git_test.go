package git

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/randalmurphal/ticketflow/testutil"
)

func mockContext(t *testing.T, runner CommandRunner) *Context {
	return &Context{
		repoPath: t.TempDir(),
		workDir:  t.TempDir(),
		remote:   "origin",
		runner:   runner,
	}
}

func TestCommitAll(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutput("", nil)             // git add -A
	runner.AddOutput("", nil)             // git commit -m
	runner.AddOutput("abc123def456", nil) // git rev-parse HEAD
	runner.AddOutput("feature/test", nil) // git rev-parse --abbrev-ref HEAD

	result, err := mockContext(t, runner).CommitAll("test message")
	if err != nil {
		t.Fatalf("CommitAll failed: %v", err)
	}
	if result.SHA != "abc123def456" {
		t.Errorf("SHA = %q, want %q", result.SHA, "abc123def456")
	}
	if result.Branch != "feature/test" {
		t.Errorf("Branch = %q, want %q", result.Branch, "feature/test")
	}
	if got := runner.Calls[1].Args; len(got) != 3 || got[0] != "commit" || got[2] != "test message" {
		t.Errorf("commit args = %v", got)
	}
}

func TestCommitAll_NothingToCommit(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutput("", nil)
	runner.AddOutputError("", "nothing to commit, working tree clean", nil)

	_, err := mockContext(t, runner).CommitAll("test message")
	if !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("err = %v, want ErrNothingToCommit", err)
	}
}

func TestPushCurrent_SetsUpstreamOnFirstPush(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutput("main", nil)                   // current branch
	runner.AddOutputError("", "", nil)              // origin/main missing
	runner.AddOutput("", nil)                       // push -u origin main
	runner.AddOutput("abc123", nil)                 // rev-parse HEAD
	runner.AddOutput("git@github.com:o/r.git", nil) // remote get-url

	result, err := mockContext(t, runner).PushCurrent()
	if err != nil {
		t.Fatalf("PushCurrent failed: %v", err)
	}
	if !result.SetUpstream {
		t.Error("SetUpstream = false, want true")
	}
	if result.Remote != "origin" || result.Branch != "main" || result.SHA != "abc123" {
		t.Errorf("result = %+v", result)
	}
	if got := strings.Join(runner.Calls[2].Args, " "); got != "push -u origin main" {
		t.Errorf("push args = %q", got)
	}
}

func TestPush_WrapsPushFailed(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutputError("", "rejected", nil)

	err := mockContext(t, runner).Push("origin", "main", false)
	if !errors.Is(err, ErrPushFailed) {
		t.Errorf("err = %v, want ErrPushFailed", err)
	}
}

func TestCreateBranch_Exists(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutputError("", "fatal: a branch named 'x' already exists", nil)

	if err := mockContext(t, runner).CreateBranch("x"); !errors.Is(err, ErrBranchExists) {
		t.Errorf("err = %v, want ErrBranchExists", err)
	}
}

func TestNewContext_NotARepo(t *testing.T) {
	if _, err := NewContext(t.TempDir()); !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("err = %v, want ErrNotGitRepo", err)
	}
}

func TestWriteFile_RejectsEscapes(t *testing.T) {
	g := mockContext(t, NewSequentialMockRunner())
	for _, p := range []string{"../outside.md", "/etc/passwd"} {
		if err := g.WriteFile(p, []byte("x")); err == nil {
			t.Errorf("WriteFile(%q) succeeded", p)
		}
	}
}

func TestEnsureWorktree_CommitAndPush(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	remote := testutil.SetupBareRemote(t, repo)

	g, err := NewContext(repo)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	wt, err := g.EnsureWorktree("plan/t-1", "main")
	if err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}
	if wt.WorkDir() != g.WorktreePath("plan/t-1") {
		t.Errorf("WorkDir = %q, want %q", wt.WorkDir(), g.WorktreePath("plan/t-1"))
	}
	if err := wt.WriteFile("plans/T-1.md", []byte("# Plan\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	commit, err := wt.CommitFiles("docs: add plan", "plans/T-1.md")
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if commit.Branch != "plan/t-1" {
		t.Errorf("Branch = %q, want plan/t-1", commit.Branch)
	}

	push, err := wt.PushCurrent()
	if err != nil {
		t.Fatalf("PushCurrent: %v", err)
	}
	if !push.SetUpstream {
		t.Error("first push should set upstream")
	}
	if got := testutil.FileAtRef(t, remote, "plan/t-1", "plans/T-1.md"); got != "# Plan" {
		t.Errorf("remote plan = %q", got)
	}

	// The main checkout never leaves main.
	if branch := testutil.CurrentBranch(t, repo); branch != "main" {
		t.Errorf("main checkout on %q", branch)
	}

	again, err := g.EnsureWorktree("plan/t-1", "main")
	if err != nil {
		t.Fatalf("EnsureWorktree again: %v", err)
	}
	if again.WorkDir() != wt.WorkDir() {
		t.Errorf("second EnsureWorktree returned %q", again.WorkDir())
	}

	if _, err := again.CommitFiles("docs: same plan", "plans/T-1.md"); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("unchanged commit err = %v, want ErrNothingToCommit", err)
	}
}

func TestListWorktrees(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	g, err := NewContext(repo)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if _, err := g.EnsureWorktree("feature/t-2", ""); err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}

	list, err := g.ListWorktrees()
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	var found bool
	for _, wt := range list {
		if wt.Branch == "feature/t-2" {
			found = true
			if _, err := os.Stat(filepath.Join(wt.Path, "README.md")); err != nil {
				t.Errorf("worktree missing README: %v", err)
			}
		}
	}
	if !found {
		t.Errorf("feature/t-2 not listed in %+v", list)
	}

	if err := g.CleanupWorktree(g.WorktreePath("feature/t-2")); err != nil {
		t.Errorf("CleanupWorktree: %v", err)
	}
}

func TestBranchNamer(t *testing.T) {
	n := DefaultBranchNamer()
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ticket with title", n.ForTicket("TK-421", "Add User Authentication"), "feature/tk-421-add-user-authentication"},
		{"ticket without title", n.ForTicket("TK-421", ""), "feature/tk-421"},
		{"plan", n.ForPlan("TK-421"), "plan/tk-421"},
		{"punctuation", n.ForTicket("T_1", "Fix: crash (again)!"), "feature/t-1-fix-crash-again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCommitMessage_String(t *testing.T) {
	msg := NewCommitMessage(CommitTypeFeat, "add login\nsecond line ignored").
		WithScope("auth").
		WithBody("Implements the plan.").
		WithTicketRef("TK-421")

	want := "feat(auth): add login\n\nImplements the plan.\n\nRefs: TK-421\nGenerated-By: ticketflow"
	if got := msg.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
	if err := msg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := NewCommitMessage(CommitTypeFix, " ").Validate(); err == nil {
		t.Error("empty subject should fail validation")
	}
}
