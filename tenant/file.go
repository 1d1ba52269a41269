package tenant

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk layout of a tenants file.
type fileFormat struct {
	Default string   `yaml:"default,omitempty"`
	Tenants []Config `yaml:"tenants" validate:"dive"`
}

// FileProvider serves tenant configuration from a YAML file. A ticket maps
// to the tenant whose ticket_prefixes match its id, or to the default tenant.
type FileProvider struct {
	path string

	mu       sync.RWMutex
	tenants  []Config
	fallback string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads and validates a tenants file.
func LoadFile(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file. On error the previous configuration stays.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read tenants file: %w", err)
	}
	tenants, fallback, err := parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}

	p.mu.Lock()
	p.tenants = tenants
	p.fallback = fallback
	p.mu.Unlock()
	return nil
}

func parse(data []byte) ([]Config, string, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parse tenants: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, "", fmt.Errorf("invalid tenants: %w", err)
	}

	seen := make(map[string]bool, len(f.Tenants))
	for _, t := range f.Tenants {
		if seen[t.TenantID] {
			return nil, "", fmt.Errorf("duplicate tenant %q", t.TenantID)
		}
		seen[t.TenantID] = true
	}
	if f.Default != "" && !seen[f.Default] {
		return nil, "", fmt.Errorf("default tenant %q is not defined", f.Default)
	}
	return f.Tenants, f.Default, nil
}

// GetConfigurationForTicket implements Provider.
func (p *FileProvider) GetConfigurationForTicket(ctx context.Context, ticketID string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	for i := range p.tenants {
		for _, prefix := range p.tenants[i].TicketPrefixes {
			if strings.HasPrefix(ticketID, prefix) {
				cfg := p.tenants[i]
				return &cfg, nil
			}
		}
	}
	if p.fallback != "" {
		return p.byIDLocked(p.fallback)
	}
	return nil, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
}

// Tenant returns the configuration for a tenant id.
func (p *FileProvider) Tenant(tenantID string) (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byIDLocked(tenantID)
}

func (p *FileProvider) byIDLocked(tenantID string) (*Config, error) {
	for i := range p.tenants {
		if p.tenants[i].TenantID == tenantID {
			cfg := p.tenants[i]
			return &cfg, nil
		}
	}
	return nil, fmt.Errorf("%w: tenant %s", ErrNotFound, tenantID)
}
