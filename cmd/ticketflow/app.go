package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/config"
	tferrors "github.com/randalmurphal/ticketflow/errors"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/graph"
	"github.com/randalmurphal/ticketflow/jira"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/pr"
	"github.com/randalmurphal/ticketflow/steps"
	"github.com/randalmurphal/ticketflow/store"
	"github.com/randalmurphal/ticketflow/tenant"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

// app is everything a command needs, opened from the resolved settings.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	db       *store.DB
	tenants  *tenant.FileProvider
	wf       *workflow.Coordinator
}

func (a *app) Close() error {
	return a.db.Close()
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	for key := range overrides {
		if !config.IsKey(key) {
			return nil, tferrors.Usage("unknown config key %q in --set", key)
		}
	}
	resolved := config.NewResolver(config.WithWarnings(cmd.ErrOrStderr())).Resolve(overrides)
	return config.Load(resolved)
}

// openStore opens settings, logger, and database only.
func openStore(cmd *cobra.Command) (*app, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	logger := settings.Logger(cmd.ErrOrStderr())
	db, err := store.Open(settings.DBPath)
	if err != nil {
		return nil, err
	}
	return &app{settings: settings, logger: logger, db: db}, nil
}

// openApp opens the store and builds the coordinator with the full step
// registry: built-in git and pull request steps plus the configured agents.
func openApp(cmd *cobra.Command) (*app, error) {
	a, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.buildWorkflow(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildWorkflow() error {
	s := a.settings

	repo, err := git.NewContext(s.RepoPath, git.WithRemote(s.Remote))
	if err != nil {
		return fmt.Errorf("%s: %w", s.RepoPath, err)
	}

	var provider pr.Provider
	if remoteURL, err := repo.GetRemoteURL(s.Remote); err != nil {
		a.logger.Warn("no remote url, pull requests disabled", "remote", s.Remote, "error", err)
	} else if provider, err = pr.ProviderFromEnv(remoteURL); err != nil {
		a.logger.Warn("no pull request provider", "remote", remoteURL, "error", err)
	}

	notifier := a.notifier()
	opts := []steps.Option{
		steps.WithNotifier(notifier),
		steps.WithBaseBranch(s.BaseBranch),
		steps.WithPlanDir(s.PlanDir),
		steps.WithLogger(a.logger),
	}
	if !s.Push {
		opts = append(opts, steps.WithoutPush())
	}
	if s.DraftPRs {
		opts = append(opts, steps.AsDraft())
	}
	if jc := s.JiraConfig(); jc != nil {
		client, err := jira.NewClient(jc)
		if err != nil {
			return fmt.Errorf("jira: %w", err)
		}
		opts = append(opts, steps.WithTracker(steps.NewJiraTracker(client)))
	}

	agents := map[agent.StepType]*steps.CommandAgent{}
	if s.AgentsFile != "" {
		if agents, err = steps.LoadAgents(s.AgentsFile); err != nil {
			return err
		}
	}
	reg := agent.NewRegistry()
	steps.Register(reg, steps.New(repo, provider, opts...), agents)

	wfOpts := []workflow.Option{
		workflow.WithLeaser(a.db.Leases()),
		workflow.WithLeaseTTL(s.LeaseTTL),
		workflow.WithNotifier(notifier),
		workflow.WithLogger(a.logger),
	}
	if s.TenantsFile != "" {
		if a.tenants, err = tenant.LoadFile(s.TenantsFile); err != nil {
			return err
		}
		wfOpts = append(wfOpts, workflow.WithTenants(a.tenants))
	}

	a.wf = workflow.New(agent.Instrument(reg, a.logger), a.db.Checkpoints(), a.db.Tickets(), wfOpts...)
	return nil
}

// notifier fans out to the log and any configured webhooks.
func (a *app) notifier() notify.Notifier {
	ns := []notify.Notifier{notify.NewLogNotifier(a.logger)}
	if u := a.settings.NotifyWebhookURL; u != "" {
		ns = append(ns, notify.NewWebhookNotifier(u, notify.WithWebhookSecret(a.settings.NotifyWebhookKey)))
	}
	if u := a.settings.NotifySlackURL; u != "" {
		ns = append(ns, notify.NewSlackNotifier(u))
	}
	return notify.NewMultiNotifier(ns...).WithLogger(a.logger)
}

// =============================================================================
// Output
// =============================================================================

type resultView struct {
	State     string `json:"state"`
	Success   bool   `json:"success"`
	Suspended bool   `json:"suspended"`
	Error     string `json:"error,omitempty"`
}

type progressView struct {
	Ticket ticket.Record `json:"ticket"`
	Graph  string        `json:"graph,omitempty"`
	Result *resultView   `json:"result,omitempty"`
}

func viewProgress(p workflow.Progress) progressView {
	v := progressView{Ticket: p.Ticket.Record(), Graph: p.Graph}
	if p.Graph != "" {
		v.Result = viewResult(p.Result)
	}
	return v
}

func viewResult(r graph.Result) *resultView {
	v := &resultView{State: r.State, Success: r.Success, Suspended: r.Suspended()}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readFileArg(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
