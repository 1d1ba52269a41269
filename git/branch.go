package git

import (
	"regexp"
	"strings"
)

// BranchNamer generates branch names for ticket work.
type BranchNamer struct {
	FeaturePrefix string // implementation branches, e.g. "feature"
	PlanPrefix    string // plan branches, e.g. "plan"
	IncludeTitle  bool
	MaxLength     int
}

// DefaultBranchNamer returns the namer used by the workflow steps.
func DefaultBranchNamer() *BranchNamer {
	return &BranchNamer{
		FeaturePrefix: "feature",
		PlanPrefix:    "plan",
		IncludeTitle:  true,
		MaxLength:     100,
	}
}

// ForTicket names the implementation branch.
// Example: "TK-421", "Add User Authentication" -> "feature/tk-421-add-user-authentication"
func (n *BranchNamer) ForTicket(ticketID, title string) string {
	parts := []string{Slugify(ticketID)}
	if n.IncludeTitle && title != "" {
		slug := Slugify(title)
		if len(slug) > 50 {
			slug = strings.TrimRight(slug[:50], "-")
		}
		parts = append(parts, slug)
	}
	return n.limit(n.FeaturePrefix + "/" + strings.Join(parts, "-"))
}

// ForPlan names the branch plan revisions are committed to.
// Example: "TK-421" -> "plan/tk-421"
func (n *BranchNamer) ForPlan(ticketID string) string {
	return n.limit(n.PlanPrefix + "/" + Slugify(ticketID))
}

func (n *BranchNamer) limit(branch string) string {
	if n.MaxLength > 0 && len(branch) > n.MaxLength {
		branch = branch[:n.MaxLength]
	}
	return CleanBranch(branch)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify converts s to a lowercase, hyphen-separated slug.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	s = slugUnsafe.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CleanBranch collapses hyphen runs and trims trailing hyphens from every
// path segment.
func CleanBranch(s string) string {
	s = hyphenRuns.ReplaceAllString(s, "-")
	parts := strings.Split(s, "/")
	for i, part := range parts {
		parts[i] = strings.TrimRight(part, "-")
	}
	return strings.Join(parts, "/")
}
