package integrationtest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/pr"
	"github.com/randalmurphal/ticketflow/steps"
	"github.com/randalmurphal/ticketflow/store"
	"github.com/randalmurphal/ticketflow/tenant"
	"github.com/randalmurphal/ticketflow/testutil"
	"github.com/randalmurphal/ticketflow/workflow"
)

// planner emits a fixed one-step plan.
const planner = `printf '{"kind":"plan_generated","payload":{"ticket_id":"%s","plan_markdown":"# Plan\\n\\n1. Add hello.txt","summary":"add hello","revision":1}}' "$TICKETFLOW_TICKET_ID"`

// implementer writes hello.txt into its working directory.
const implementer = `printf 'hello\n' > hello.txt
printf '{"kind":"code_implemented","payload":{"ticket_id":"%s","branch":"%s","summary":"add hello","files_changed":["hello.txt"]}}' "$TICKETFLOW_TICKET_ID" "$TICKETFLOW_BRANCH"`

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// env is one repository, database, and provider shared by every
// coordinator built from it.
type env struct {
	repoDir   string
	remoteDir string
	db        *store.DB
	provider  *pr.MockProvider
	events    *recorder
	tenant    *tenant.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repoDir := testutil.SetupTestRepo(t)
	remoteDir := testutil.SetupBareRemote(t, repoDir)

	db, err := store.Open(filepath.Join(t.TempDir(), "ticketflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &env{
		repoDir:   repoDir,
		remoteDir: remoteDir,
		db:        db,
		provider:  &pr.MockProvider{},
		events:    &recorder{},
		tenant: &tenant.Config{
			TenantID:                       "acme",
			AutoImplementAfterPlanApproval: true,
			RequiredReviewers:              []string{"alice"},
			OptionalReviewers:              []string{"bob"},
		},
	}
}

// coordinator builds a fresh coordinator, as a new process would.
func (e *env) coordinator(t *testing.T) *workflow.Coordinator {
	t.Helper()
	repo, err := git.NewContext(e.repoDir)
	require.NoError(t, err)

	s := steps.New(repo, e.provider,
		steps.WithNotifier(e.events),
		steps.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
	reg := agent.NewRegistry()
	steps.Register(reg, s, map[agent.StepType]*steps.CommandAgent{
		agent.StepPlanning:       {Command: []string{"sh", "-c", planner}},
		agent.StepImplementation: {Command: []string{"sh", "-c", implementer}},
	})

	return workflow.New(reg, e.db.Checkpoints(), e.db.Tickets(),
		workflow.WithTenants(tenant.Static(e.tenant)),
		workflow.WithLeaser(e.db.Leases()),
		workflow.WithNotifier(e.events),
	)
}
