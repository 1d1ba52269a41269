package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/testutil"
)

func shAgent(script string) *CommandAgent {
	return &CommandAgent{Command: []string{"sh", "-c", script}}
}

func TestCommandAgent_ExchangesEnvelopes(t *testing.T) {
	// The plan echoes the step and model from the environment, and the
	// request kind from stdin.
	a := shAgent(`kind=$(sed -n 's/.*"input":{"kind":"\([a-z_]*\)".*/\1/p')
printf '{"kind":"plan_generated","payload":{"ticket_id":"%s","plan_markdown":"%s %s %s","revision":1}}' \
  "$TICKETFLOW_TICKET_ID" "$TICKETFLOW_STEP" "$TICKETFLOW_MODEL" "$kind"`)
	a.Model = "claude-test"

	out, err := a.Handler(agent.StepPlanning)(testutil.TestContext(t), testutil.Answers("TK-1"), agent.Context{TicketID: "TK-1"})
	require.NoError(t, err)

	plan, ok := out.(message.PlanGeneratedMessage)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "TK-1", plan.TicketID)
	assert.Equal(t, "planning claude-test answers_received", plan.PlanMarkdown)
}

func TestCommandAgent_Failures(t *testing.T) {
	ctx := context.Background()
	in := testutil.Answers("TK-1")

	t.Run("non-zero exit", func(t *testing.T) {
		_, err := shAgent(`echo "model quota exceeded" >&2; exit 3`).Run(ctx, agent.StepPlanning, in, agent.Context{}, Invocation{})
		var agentErr *AgentError
		require.ErrorAs(t, err, &agentErr)
		assert.Equal(t, agent.StepPlanning, agentErr.Step)
		assert.Equal(t, "model quota exceeded", agentErr.Stderr)
	})

	t.Run("garbage output", func(t *testing.T) {
		_, err := shAgent(`cat >/dev/null; echo not json`).Run(ctx, agent.StepPlanning, in, agent.Context{}, Invocation{})
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})

	t.Run("fails validation", func(t *testing.T) {
		_, err := shAgent(`echo '{"kind":"plan_generated","payload":{"ticket_id":"TK-1"}}'`).Run(ctx, agent.StepPlanning, in, agent.Context{}, Invocation{})
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})

	t.Run("wrong ticket", func(t *testing.T) {
		_, err := shAgent(`echo '{"kind":"plan_generated","payload":{"ticket_id":"TK-2","plan_markdown":"x"}}'`).Run(ctx, agent.StepPlanning, in, agent.Context{}, Invocation{})
		assert.ErrorIs(t, err, ErrTicketMismatch)
	})

	t.Run("timeout", func(t *testing.T) {
		a := shAgent(`exec sleep 5`)
		a.Timeout = 50 * time.Millisecond
		start := time.Now()
		_, err := a.Run(ctx, agent.StepPlanning, in, agent.Context{}, Invocation{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := (&CommandAgent{}).Run(ctx, agent.StepPlanning, in, agent.Context{}, Invocation{})
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})
}

func TestImplement_RunsInFeatureWorktree(t *testing.T) {
	repoDir, _, repo := newRepo(t)
	s := New(repo, nil, WithoutPush())

	a := shAgent(`printf '%s\n%s' "$TICKETFLOW_BRANCH" "$TICKETFLOW_PLAN_PATH" > impl.txt
printf '{"kind":"code_implemented","payload":{"ticket_id":"%s","summary":"wrote impl"}}' "$TICKETFLOW_TICKET_ID"`)

	out, err := s.Implement(a)(context.Background(), testutil.Approval("TK-1"), agent.Context{TicketID: "TK-1"})
	require.NoError(t, err)

	impl := out.(message.CodeImplementedMessage)
	assert.Equal(t, "feature/tk-1", impl.Branch)

	data, err := os.ReadFile(filepath.Join(repo.WorktreePath("feature/tk-1"), "impl.txt"))
	require.NoError(t, err)
	assert.Equal(t, "feature/tk-1\nplans/TK-1.md", string(data))
	assert.NoFileExists(t, filepath.Join(repoDir, "impl.txt"))

	// The commit step picks the file up from the same worktree.
	committed, err := s.CommitCode(context.Background(), impl, agent.Context{})
	require.NoError(t, err)
	assert.Equal(t, "feature/tk-1\nplans/TK-1.md", testutil.FileAtRef(t, repoDir, committed.(message.CodeCommittedMessage).Branch, "impl.txt"))
}

func TestParseAgents(t *testing.T) {
	agents, err := ParseAgents([]byte(`
steps:
  planning:
    command: ["plan-agent", "--json"]
    dir: agents
    timeout: 20m
    model: claude-opus-4
    env:
      B: "2"
      A: "1"
  code_review:
    command: ["review-agent"]
`), "/etc/ticketflow")
	require.NoError(t, err)
	require.Len(t, agents, 2)

	plan := agents[agent.StepPlanning]
	assert.Equal(t, []string{"plan-agent", "--json"}, plan.Command)
	assert.Equal(t, "/etc/ticketflow/agents", plan.Dir)
	assert.Equal(t, 20*time.Minute, plan.Timeout)
	assert.Equal(t, []string{"A=1", "B=2"}, plan.Env)
	assert.Equal(t, "claude-opus-4", string(plan.Model))

	assert.Empty(t, agents[agent.StepCodeReview].Dir)
}

func TestParseAgents_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown step", "steps:\n  deploy:\n    command: [x]\n", agent.ErrUnknownStep},
		{"empty command", "steps:\n  planning: {}\n", ErrEmptyCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAgents([]byte(tt.yaml), ".")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadAgents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  analysis:\n    command: [analyze]\n    dir: work\n"), 0o644))

	agents, err := LoadAgents(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "work"), agents[agent.StepAnalysis].Dir)

	_, err = LoadAgents(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
