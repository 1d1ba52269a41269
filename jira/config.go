package jira

import "time"

// AuthType selects how requests are authenticated.
type AuthType string

const (
	AuthAPIToken AuthType = "api_token" // Cloud: email + API token, basic auth
	AuthPAT      AuthType = "pat"       // Server/DC: bearer personal access token
)

// APIVersion is the REST API version in use.
type APIVersion string

const (
	APIVersionV2 APIVersion = "2"
	APIVersionV3 APIVersion = "3"
)

// Config configures a Client.
type Config struct {
	URL        string     `yaml:"url" validate:"required,url"`
	APIVersion APIVersion `yaml:"api_version"` // default 3
	Auth       AuthConfig `yaml:"auth"`

	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
}

// AuthConfig holds credentials.
type AuthConfig struct {
	Type  AuthType `yaml:"type"`
	Email string   `yaml:"email"`
	Token string   `yaml:"token"`
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryWaitMin = time.Second
	defaultRetryWaitMax = 30 * time.Second
)

// Validate checks required fields for the chosen auth type.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrConfigURLRequired
	}
	switch c.Auth.Type {
	case AuthAPIToken:
		if c.Auth.Email == "" || c.Auth.Token == "" {
			return ErrConfigAPITokenAuth
		}
	case AuthPAT:
		if c.Auth.Token == "" {
			return ErrConfigPATAuth
		}
	case "":
		return ErrConfigAuthTypeRequired
	default:
		return ErrConfigAuthTypeInvalid
	}
	switch c.APIVersion {
	case "", APIVersionV2, APIVersionV3:
	default:
		return ErrConfigAPIVersionInvalid
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.APIVersion == "" {
		out.APIVersion = APIVersionV3
	}
	if out.Timeout == 0 {
		out.Timeout = defaultTimeout
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = defaultMaxRetries
	}
	if out.RetryWaitMin == 0 {
		out.RetryWaitMin = defaultRetryWaitMin
	}
	if out.RetryWaitMax == 0 {
		out.RetryWaitMax = defaultRetryWaitMax
	}
	return out
}
