package tenant

import (
	"context"
	"errors"
)

// ErrNotFound indicates no tenant configuration matches the ticket.
var ErrNotFound = errors.New("tenant configuration not found")

// Config is the per-tenant automation configuration.
type Config struct {
	TenantID                       string   `yaml:"tenant_id" json:"tenant_id" validate:"required"`
	AutoImplementAfterPlanApproval bool     `yaml:"auto_implement_after_plan_approval" json:"auto_implement_after_plan_approval"`
	Repository                     string   `yaml:"repository,omitempty" json:"repository,omitempty"`
	BaseBranch                     string   `yaml:"base_branch,omitempty" json:"base_branch,omitempty"`
	RequiredReviewers              []string `yaml:"required_reviewers,omitempty" json:"required_reviewers,omitempty"`
	OptionalReviewers              []string `yaml:"optional_reviewers,omitempty" json:"optional_reviewers,omitempty"`
	TicketPrefixes                 []string `yaml:"ticket_prefixes,omitempty" json:"ticket_prefixes,omitempty"`
}

// Provider looks up the configuration that applies to a ticket.
// A nil config with a nil error means the ticket has no configuration.
type Provider interface {
	GetConfigurationForTicket(ctx context.Context, ticketID string) (*Config, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, ticketID string) (*Config, error)

// GetConfigurationForTicket implements Provider.
func (f ProviderFunc) GetConfigurationForTicket(ctx context.Context, ticketID string) (*Config, error) {
	return f(ctx, ticketID)
}

// Static returns a Provider that answers every ticket with cfg.
func Static(cfg *Config) Provider {
	return ProviderFunc(func(context.Context, string) (*Config, error) {
		return cfg, nil
	})
}
