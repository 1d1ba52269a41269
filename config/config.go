package config

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration keys.
const (
	KeyDBPath           = "db_path"
	KeyTenantsFile      = "tenants_file"
	KeyAgentsFile       = "agents_file"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyListenAddr       = "listen_addr"
	KeyTokenSecret      = "token_secret"
	KeyTokenTTL         = "token_ttl"
	KeyLeaseTTL         = "lease_ttl"
	KeyNotifyWebhookURL = "notify_webhook_url"
	KeyNotifyWebhookKey = "notify_webhook_secret"
	KeyNotifySlackURL   = "notify_slack_url"
	KeyRepoPath         = "repo_path"
	KeyBaseBranch       = "base_branch"
	KeyRemote           = "remote"
	KeyPlanDir          = "plan_dir"
	KeyPush             = "push"
	KeyDraftPRs         = "draft_prs"
	KeyJiraURL          = "jira_url"
	KeyJiraEmail        = "jira_email"
	KeyJiraToken        = "jira_token"
	KeyJiraAPIVersion   = "jira_api_version"
)

// EnvPrefix is prepended to upper-cased keys for environment lookup.
const EnvPrefix = "TICKETFLOW_"

// LocalFileName is the per-repository config file at the git root.
const LocalFileName = ".ticketflow.yaml"

// Defaults are the built-in values.
var Defaults = map[string]string{
	KeyDBPath:         "ticketflow.db",
	KeyLogLevel:       "info",
	KeyLogFormat:      "text",
	KeyListenAddr:     ":8080",
	KeyTokenTTL:       "72h",
	KeyLeaseTTL:       "30m",
	KeyRepoPath:       ".",
	KeyBaseBranch:     "main",
	KeyRemote:         "origin",
	KeyPlanDir:        "plans",
	KeyPush:           "true",
	KeyDraftPRs:       "false",
	KeyJiraAPIVersion: "3",
}

// Keys lists every known key, sorted.
func Keys() []string {
	keys := []string{
		KeyDBPath, KeyTenantsFile, KeyAgentsFile, KeyLogLevel, KeyLogFormat,
		KeyListenAddr, KeyTokenSecret, KeyTokenTTL, KeyLeaseTTL,
		KeyNotifyWebhookURL, KeyNotifyWebhookKey, KeyNotifySlackURL, KeyRepoPath, KeyBaseBranch,
		KeyRemote, KeyPlanDir, KeyPush, KeyDraftPRs, KeyJiraURL, KeyJiraEmail,
		KeyJiraToken, KeyJiraAPIVersion,
	}
	slices.Sort(keys)
	return keys
}

// IsKey reports whether key is known.
func IsKey(key string) bool {
	return slices.Contains(Keys(), key)
}

// secretKeys are masked by Resolved.Display.
var secretKeys = map[string]bool{
	KeyTokenSecret:      true,
	KeyNotifyWebhookKey: true,
	KeyJiraToken:        true,
}

// Resolver merges the configuration layers.
type Resolver struct {
	globalPath string
	localPath  string
	getenv     func(string) string
	errWriter  io.Writer

	// Warnings collects files that could not be parsed.
	Warnings []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGlobalPath replaces the global config file path. Empty disables it.
func WithGlobalPath(path string) Option {
	return func(r *Resolver) { r.globalPath = path }
}

// WithLocalPath replaces the local config file path. Empty disables it.
func WithLocalPath(path string) Option {
	return func(r *Resolver) { r.localPath = path }
}

// WithEnv replaces os.Getenv.
func WithEnv(getenv func(string) string) Option {
	return func(r *Resolver) { r.getenv = getenv }
}

// WithWarnings sets where parse warnings are printed. Default os.Stderr.
func WithWarnings(w io.Writer) Option {
	return func(r *Resolver) { r.errWriter = w }
}

// NewResolver creates a resolver reading the standard file locations.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		globalPath: GlobalPath(),
		getenv:     os.Getenv,
		errWriter:  os.Stderr,
	}
	if root := FindGitRoot("."); root != "" {
		r.localPath = filepath.Join(root, LocalFileName)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GlobalPath returns ~/.config/ticketflow/config.yaml, or "" without a home dir.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ticketflow", "config.yaml")
}

// LocalPath returns the local file in use, if any.
func (r *Resolver) LocalPath() string { return r.localPath }

// GlobalFile returns the global file in use, if any.
func (r *Resolver) GlobalFile() string { return r.globalPath }

// Resolved is the merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for key, or "".
func (c *Resolved) Get(key string) string { return c.values[key] }

// Source returns where key's value came from.
func (c *Resolved) Source(key string) Source { return c.sources[key] }

// All returns a copy of every set value.
func (c *Resolved) All() map[string]string { return maps.Clone(c.values) }

// Display returns key's value with secrets masked.
func (c *Resolved) Display(key string) string {
	v := c.values[key]
	if secretKeys[key] && v != "" {
		return "********"
	}
	return v
}

// Resolve merges defaults, files, environment, and non-empty flags.
func (r *Resolver) Resolve(flags map[string]string) *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}
	for k, v := range Defaults {
		cfg.set(k, v, SourceDefault)
	}
	r.applyFile(cfg, r.globalPath, SourceGlobal)
	r.applyFile(cfg, r.localPath, SourceLocal)

	for _, key := range Keys() {
		if v := r.getenv(EnvKey(key)); v != "" {
			cfg.set(key, v, SourceEnv)
		}
	}
	for k, v := range flags {
		if v != "" {
			cfg.set(k, v, SourceFlag)
		}
	}
	return cfg
}

// EnvKey returns the environment variable for key.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func (c *Resolved) set(key, value string, src Source) {
	c.values[key] = value
	c.sources[key] = src
}

// applyFile merges a YAML file of scalar keys. A missing file is not an
// error; unknown keys are ignored with a warning.
func (r *Resolver) applyFile(cfg *Resolved, path string, src Source) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return
	}
	for key, value := range parsed {
		if !IsKey(key) {
			r.warn(fmt.Sprintf("%s: unknown key %q", path, key))
			continue
		}
		if s := toString(value); s != "" {
			cfg.set(key, s, src)
		}
	}
}

func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.errWriter != nil {
		fmt.Fprintf(r.errWriter, "Warning: %s\n", msg)
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}

// FindGitRoot walks up from startDir to the directory holding .git.
func FindGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
