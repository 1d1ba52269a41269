package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/randalmurphal/ticketflow/jira"
)

// ErrNoTokenSecret is returned when an operation needs decision tokens but
// token_secret is unset.
var ErrNoTokenSecret = errors.New("token_secret is not set")

// Settings is the typed, validated configuration.
type Settings struct {
	DBPath      string `key:"db_path" validate:"required"`
	TenantsFile string `key:"tenants_file"`
	AgentsFile  string `key:"agents_file"`

	LogLevel  string `key:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `key:"log_format" validate:"oneof=text json"`

	ListenAddr  string        `key:"listen_addr" validate:"required"`
	TokenSecret string        `key:"token_secret" validate:"omitempty,min=32"`
	TokenTTL    time.Duration `key:"token_ttl" validate:"gt=0"`
	LeaseTTL    time.Duration `key:"lease_ttl" validate:"gt=0"`

	NotifyWebhookURL string `key:"notify_webhook_url" validate:"omitempty,url"`
	NotifyWebhookKey string `key:"notify_webhook_secret"`
	NotifySlackURL   string `key:"notify_slack_url" validate:"omitempty,url"`

	RepoPath   string `key:"repo_path" validate:"required"`
	BaseBranch string `key:"base_branch" validate:"required"`
	Remote     string `key:"remote" validate:"required"`
	PlanDir    string `key:"plan_dir" validate:"required"`
	Push       bool   `key:"push"`
	DraftPRs   bool   `key:"draft_prs"`

	JiraURL        string `key:"jira_url" validate:"omitempty,url"`
	JiraEmail      string `key:"jira_email" validate:"omitempty,email"`
	JiraToken      string `key:"jira_token" validate:"required_with=JiraURL"`
	JiraAPIVersion string `key:"jira_api_version" validate:"oneof=2 3"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("key")
	})
	return v
}

// Load converts and validates resolved values.
func Load(r *Resolved) (*Settings, error) {
	s := &Settings{
		DBPath:           r.Get(KeyDBPath),
		TenantsFile:      r.Get(KeyTenantsFile),
		AgentsFile:       r.Get(KeyAgentsFile),
		LogLevel:         strings.ToLower(r.Get(KeyLogLevel)),
		LogFormat:        strings.ToLower(r.Get(KeyLogFormat)),
		ListenAddr:       r.Get(KeyListenAddr),
		TokenSecret:      r.Get(KeyTokenSecret),
		NotifyWebhookURL: r.Get(KeyNotifyWebhookURL),
		NotifyWebhookKey: r.Get(KeyNotifyWebhookKey),
		NotifySlackURL:   r.Get(KeyNotifySlackURL),
		RepoPath:         r.Get(KeyRepoPath),
		BaseBranch:       r.Get(KeyBaseBranch),
		Remote:           r.Get(KeyRemote),
		PlanDir:          r.Get(KeyPlanDir),
		JiraURL:          r.Get(KeyJiraURL),
		JiraEmail:        r.Get(KeyJiraEmail),
		JiraToken:        r.Get(KeyJiraToken),
		JiraAPIVersion:   r.Get(KeyJiraAPIVersion),
	}

	var errs []error
	parseDuration := func(key string, dst *time.Duration) {
		d, err := time.ParseDuration(r.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	parseBool := func(key string, dst *bool) {
		b, err := strconv.ParseBool(r.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
	parseDuration(KeyTokenTTL, &s.TokenTTL)
	parseDuration(KeyLeaseTTL, &s.LeaseTTL)
	parseBool(KeyPush, &s.Push)
	parseBool(KeyDraftPRs, &s.DraftPRs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := validate.Struct(s); err != nil {
		return nil, validationError(err)
	}
	return s, nil
}

// validationError rewrites validator output in terms of config keys.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_with":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// SlogLevel returns the configured log level.
func (s *Settings) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds a text or JSON logger writing to w.
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TokenSecretBytes returns the decision token secret, or ErrNoTokenSecret.
func (s *Settings) TokenSecretBytes() ([]byte, error) {
	if s.TokenSecret == "" {
		return nil, ErrNoTokenSecret
	}
	return []byte(s.TokenSecret), nil
}

// JiraConfig returns the Jira client configuration, or nil when jira_url
// is unset. An email selects API token auth, otherwise the token is a PAT.
func (s *Settings) JiraConfig() *jira.Config {
	if s.JiraURL == "" {
		return nil
	}
	cfg := &jira.Config{
		URL:        s.JiraURL,
		APIVersion: jira.APIVersion(s.JiraAPIVersion),
		Auth:       jira.AuthConfig{Type: jira.AuthPAT, Token: s.JiraToken},
	}
	if s.JiraEmail != "" {
		cfg.Auth.Type = jira.AuthAPIToken
		cfg.Auth.Email = s.JiraEmail
	}
	return cfg
}
