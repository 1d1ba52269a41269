package steps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/jira"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/pr"
	"github.com/randalmurphal/ticketflow/testutil"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTracker struct {
	mu       sync.Mutex
	title    string
	titleErr error
	comments []string
}

func (f *fakeTracker) IssueTitle(ctx context.Context, ticketID string) (string, error) {
	return f.title, f.titleErr
}

func (f *fakeTracker) Comment(ctx context.Context, ticketID, markdown string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, markdown)
	return "https://jira.example.com/browse/" + ticketID + "?focusedCommentId=1", nil
}

// newRepo returns a repository with a bare origin.
func newRepo(t *testing.T) (repoDir, remoteDir string, repo *git.Context) {
	t.Helper()
	repoDir = testutil.SetupTestRepo(t)
	remoteDir = testutil.SetupBareRemote(t, repoDir)
	repo, err := git.NewContext(repoDir)
	require.NoError(t, err)
	return repoDir, remoteDir, repo
}

func TestCommitPlan_CommitsToPlanBranch(t *testing.T) {
	repoDir, remoteDir, repo := newRepo(t)
	s := New(repo, &pr.MockProvider{})
	ctx := testutil.TestContext(t)

	out, err := s.CommitPlan(ctx, message.PlanGeneratedMessage{
		TicketID:     "TK-1",
		PlanMarkdown: "# Plan\n\n1. Add the endpoint\n",
		Summary:      "add the endpoint",
		Revision:     1,
	}, agent.Context{TicketID: "TK-1"})
	require.NoError(t, err)

	committed, ok := out.(message.PlanCommittedMessage)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "plan/tk-1", committed.Branch)
	assert.Equal(t, "plans/TK-1.md", committed.FilePath)
	assert.Len(t, committed.CommitSHA, 40)
	require.NoError(t, message.Validate(committed))

	assert.Equal(t, "# Plan\n\n1. Add the endpoint", testutil.FileAtRef(t, remoteDir, "plan/tk-1", "plans/TK-1.md"))
	assert.Equal(t, "main", testutil.CurrentBranch(t, repoDir), "main checkout must not switch branches")

	// Same plan again is not a new commit.
	again, err := s.CommitPlan(ctx, message.PlanGeneratedMessage{
		TicketID:     "TK-1",
		PlanMarkdown: "# Plan\n\n1. Add the endpoint\n",
		Revision:     1,
	}, agent.Context{TicketID: "TK-1"})
	require.NoError(t, err)
	assert.Equal(t, committed.CommitSHA, again.(message.PlanCommittedMessage).CommitSHA)

	// A revision moves the branch forward.
	rev, err := s.CommitPlan(ctx, message.PlanGeneratedMessage{
		TicketID:     "TK-1",
		PlanMarkdown: "# Plan v2\n",
		Revision:     2,
	}, agent.Context{TicketID: "TK-1", PlanRetryCount: 1})
	require.NoError(t, err)
	assert.NotEqual(t, committed.CommitSHA, rev.(message.PlanCommittedMessage).CommitSHA)
	assert.Equal(t, "# Plan v2", testutil.FileAtRef(t, remoteDir, "plan/tk-1", "plans/TK-1.md"))
}

func TestCommitPlan_RejectsWrongInput(t *testing.T) {
	_, _, repo := newRepo(t)
	s := New(repo, nil, WithoutPush())

	_, err := s.CommitPlan(context.Background(), testutil.Answers("TK-1"), agent.Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan_generated")
}

func TestPostPlan(t *testing.T) {
	plan := message.PlanGeneratedMessage{TicketID: "TK-1", PlanMarkdown: "1. do it", Revision: 2}

	t.Run("tracker", func(t *testing.T) {
		_, _, repo := newRepo(t)
		tr := &fakeTracker{}
		s := New(repo, &pr.MockProvider{}, WithTracker(tr), WithClock(func() time.Time { return fixedNow }))

		out, err := s.PostPlan(context.Background(), plan, agent.Context{})
		require.NoError(t, err)

		posted := out.(message.MessagePostedMessage)
		assert.Equal(t, message.TargetPlanSummary, posted.Target)
		assert.Equal(t, "https://jira.example.com/browse/TK-1?focusedCommentId=1", posted.URL)
		assert.Equal(t, fixedNow, posted.PostedAt)

		require.Len(t, tr.comments, 1)
		assert.Contains(t, tr.comments[0], "revision 2")
		assert.Contains(t, tr.comments[0], "https://example.com/blob/plan/tk-1/plans/TK-1.md")
		assert.Contains(t, tr.comments[0], "1. do it")
	})

	t.Run("notifier fallback", func(t *testing.T) {
		_, _, repo := newRepo(t)
		var got []notify.Event
		n := notify.Func(func(ctx context.Context, e notify.Event) error {
			got = append(got, e)
			return nil
		})
		s := New(repo, nil, WithNotifier(n))

		out, err := s.PostPlan(context.Background(), plan, agent.Context{})
		require.NoError(t, err)
		assert.Empty(t, out.(message.MessagePostedMessage).URL)

		require.Len(t, got, 1)
		assert.Equal(t, notify.EventPlanPosted, got[0].Type)
		assert.Equal(t, "TK-1", got[0].TicketID)
		assert.Contains(t, got[0].Metadata["body"].(string), "1. do it")
	})

	t.Run("no target", func(t *testing.T) {
		_, _, repo := newRepo(t)
		s := New(repo, nil)

		_, err := s.PostPlan(context.Background(), plan, agent.Context{})
		assert.ErrorIs(t, err, ErrNoPostTarget)
	})
}

func TestCommitCode(t *testing.T) {
	repoDir, _, repo := newRepo(t)
	s := New(repo, nil, WithoutPush())

	branch := s.FeatureBranch("TK-1")
	wt, err := repo.EnsureWorktree(branch, "main")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(wt.WorkDir(), "limiter.go"), []byte("package limiter\n"), 0o644))

	out, err := s.CommitCode(context.Background(), message.CodeImplementedMessage{
		TicketID:     "TK-1",
		Branch:       branch,
		Summary:      "add rate limiter",
		FilesChanged: []string{"limiter.go"},
	}, agent.Context{TicketID: "TK-1"})
	require.NoError(t, err)

	committed := out.(message.CodeCommittedMessage)
	assert.Equal(t, branch, committed.Branch)
	assert.Equal(t, "add rate limiter", committed.Summary)
	assert.Equal(t, "package limiter", testutil.FileAtRef(t, repoDir, branch, "limiter.go"))
	assert.Equal(t, "main", testutil.CurrentBranch(t, repoDir))
}

func TestCreatePR(t *testing.T) {
	_, _, repo := newRepo(t)
	provider := &pr.MockProvider{}
	tr := &fakeTracker{title: "Add rate limiting"}
	s := New(repo, provider, WithTracker(tr), WithLabels("ticketflow"), AsDraft(), WithBaseBranch("develop"))

	out, err := s.CreatePR(context.Background(), message.CodeCommittedMessage{
		TicketID: "TK-1",
		Branch:   "feature/tk-1",
		Summary:  "add limiter middleware",
	}, agent.Context{})
	require.NoError(t, err)

	created := out.(message.PRCreatedMessage)
	assert.Equal(t, 1, created.Number)
	assert.Equal(t, "https://example.com/pr/1", created.URL)
	assert.Equal(t, "feature/tk-1", created.Branch)

	require.Len(t, provider.Created, 1)
	opts := provider.Created[0]
	assert.Equal(t, "[TK-1] Add rate limiting", opts.Title)
	assert.Equal(t, "develop", opts.Base)
	assert.Equal(t, "feature/tk-1", opts.Head)
	assert.Equal(t, []string{"ticketflow"}, opts.Labels)
	assert.True(t, opts.Draft)
	assert.Contains(t, opts.Body, "add limiter middleware")
	assert.Contains(t, opts.Body, "(https://example.com/blob/plan/tk-1/plans/TK-1.md)")
}

func TestCreatePR_TitleFallbacks(t *testing.T) {
	_, _, repo := newRepo(t)
	provider := &pr.MockProvider{}
	tr := &fakeTracker{titleErr: errors.New("jira down")}
	s := New(repo, provider, WithTracker(tr))

	_, err := s.CreatePR(context.Background(), message.CodeCommittedMessage{
		TicketID: "TK-1", Branch: "feature/tk-1", Summary: "add limiter\n\nmore detail",
	}, agent.Context{})
	require.NoError(t, err)

	s = New(repo, provider)
	_, err = s.CreatePR(context.Background(), message.CodeCommittedMessage{
		TicketID: "TK-2", Branch: "feature/tk-2",
	}, agent.Context{})
	require.NoError(t, err)

	require.Len(t, provider.Created, 2)
	assert.Equal(t, "[TK-1] add limiter", provider.Created[0].Title)
	assert.Equal(t, "[TK-2] Implement TK-2", provider.Created[1].Title)
}

func TestCreatePR_Errors(t *testing.T) {
	_, _, repo := newRepo(t)
	in := message.CodeCommittedMessage{TicketID: "TK-1", Branch: "feature/tk-1"}

	_, err := New(repo, nil).CreatePR(context.Background(), in, agent.Context{})
	assert.ErrorIs(t, err, pr.ErrNoProvider)

	provider := &pr.MockProvider{
		CreatePRFunc: func(ctx context.Context, opts pr.Options) (*pr.PullRequest, error) {
			return nil, pr.ErrExists
		},
	}
	_, err = New(repo, provider).CreatePR(context.Background(), in, agent.Context{})
	assert.ErrorIs(t, err, pr.ErrExists)
}

func TestPostTicketUpdate(t *testing.T) {
	_, _, repo := newRepo(t)
	tr := &fakeTracker{}
	s := New(repo, nil, WithTracker(tr))

	out, err := s.PostTicketUpdate(context.Background(), message.CodeCommittedMessage{
		TicketID:  "TK-1",
		Branch:    "feature/tk-1",
		CommitSHA: "0123456789abcdef0123",
		Summary:   "add limiter",
	}, agent.Context{})
	require.NoError(t, err)

	posted := out.(message.MessagePostedMessage)
	assert.Equal(t, message.TargetTicketUpdate, posted.Target)
	require.Len(t, tr.comments, 1)
	assert.Contains(t, tr.comments[0], "`feature/tk-1`")
	assert.Contains(t, tr.comments[0], "`0123456789ab`")
}

func TestCompletion(t *testing.T) {
	_, _, repo := newRepo(t)
	s := New(repo, nil, WithClock(func() time.Time { return fixedNow }))

	out, err := s.Completion(context.Background(), message.PRCreatedMessage{
		TicketID: "TK-1", Number: 7, URL: "https://example.com/pr/7",
	}, agent.Context{})
	require.NoError(t, err)

	done := out.(message.WorkflowCompletedMessage)
	assert.Equal(t, 7, done.PRNumber)
	assert.Equal(t, "https://example.com/pr/7", done.PRURL)
	assert.Equal(t, fixedNow, done.CompletedAt)
	require.NoError(t, message.Validate(done))
}

func TestRegister(t *testing.T) {
	_, _, repo := newRepo(t)
	s := New(repo, nil)
	reg := agent.NewRegistry()

	Register(reg, s, map[agent.StepType]*CommandAgent{
		agent.StepPlanning:       {Command: []string{"true"}},
		agent.StepImplementation: {Command: []string{"true"}},
	})

	for _, step := range []agent.StepType{
		agent.StepCommitPlan, agent.StepPostPlan, agent.StepGitCommit,
		agent.StepCreatePR, agent.StepPostTicketUpdate, agent.StepCompletion,
		agent.StepPlanning, agent.StepImplementation,
	} {
		assert.True(t, reg.Has(step), step)
	}
	assert.False(t, reg.Has(agent.StepAnalysis))
}

func TestJiraTracker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/3/issue/TK-1":
			_, _ = w.Write([]byte(`{"id":"10","key":"TK-1","fields":{"summary":"Add rate limiting"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/3/issue/TK-1/comment":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"99"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := jira.NewClient(&jira.Config{
		URL:  srv.URL,
		Auth: jira.AuthConfig{Type: jira.AuthPAT, Token: "tok"},
	})
	require.NoError(t, err)
	tr := NewJiraTracker(client)

	title, err := tr.IssueTitle(context.Background(), "TK-1")
	require.NoError(t, err)
	assert.Equal(t, "Add rate limiting", title)

	url, err := tr.Comment(context.Background(), "TK-1", "## Plan")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/browse/TK-1?focusedCommentId=99", url)
}
