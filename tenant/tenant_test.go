package tenant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantsYAML = `
default: acme
tenants:
  - tenant_id: acme
    auto_implement_after_plan_approval: true
    repository: acme/api
    required_reviewers: [ana, ben]
    ticket_prefixes: [ACME-]
  - tenant_id: globex
    ticket_prefixes: [GLX-]
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileProvider_Lookup(t *testing.T) {
	p, err := LoadFile(writeFile(t, tenantsYAML))
	require.NoError(t, err)
	ctx := context.Background()

	cfg, err := p.GetConfigurationForTicket(ctx, "GLX-7")
	require.NoError(t, err)
	assert.Equal(t, "globex", cfg.TenantID)
	assert.False(t, cfg.AutoImplementAfterPlanApproval)

	cfg, err = p.GetConfigurationForTicket(ctx, "OTHER-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.TenantID, "falls back to default")
	assert.Equal(t, []string{"ana", "ben"}, cfg.RequiredReviewers)
}

func TestFileProvider_NoDefault(t *testing.T) {
	p, err := LoadFile(writeFile(t, "tenants:\n  - tenant_id: solo\n    ticket_prefixes: [S-]\n"))
	require.NoError(t, err)

	_, err = p.GetConfigurationForTicket(context.Background(), "X-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing tenant id", "tenants:\n  - repository: x\n"},
		{"duplicate", "tenants:\n  - tenant_id: a\n  - tenant_id: a\n"},
		{"unknown default", "default: b\ntenants:\n  - tenant_id: a\n"},
		{"bad yaml", "tenants: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestStatic(t *testing.T) {
	cfg := &Config{TenantID: "acme"}
	got, err := Static(cfg).GetConfigurationForTicket(context.Background(), "any")
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
