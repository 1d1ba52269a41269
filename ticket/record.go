package ticket

import (
	"fmt"
	"maps"
	"time"
)

// Record is the persisted form of a Ticket. Events are not part of it.
type Record struct {
	ID                    string            `json:"id"`
	TenantID              string            `json:"tenant_id"`
	State                 WorkflowState     `json:"state"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	PlanBranch            string            `json:"plan_branch,omitempty"`
	PlanFilePath          string            `json:"plan_file_path,omitempty"`
	PlanMarkdown          string            `json:"plan_markdown,omitempty"`
	PRNumber              int               `json:"pr_number,omitempty"`
	PRURL                 string            `json:"pr_url,omitempty"`
	RetryCount            int               `json:"retry_count"`
	ErrorCount            int               `json:"error_count"`
	LastError             string            `json:"last_error,omitempty"`
	PlanReviews           []PlanReview      `json:"plan_reviews,omitempty"`
	RequiredApprovalCount int               `json:"required_approval_count"`
	PlanApprovedAt        *time.Time        `json:"plan_approved_at,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

// Record returns a snapshot of t for storage.
func (t *Ticket) Record() Record {
	return Record{
		ID:                    t.id,
		TenantID:              t.tenantID,
		State:                 t.state,
		CreatedAt:             t.createdAt,
		UpdatedAt:             t.updatedAt,
		CompletedAt:           copyTime(t.completedAt),
		PlanBranch:            t.planBranch,
		PlanFilePath:          t.planFilePath,
		PlanMarkdown:          t.planMarkdown,
		PRNumber:              t.prNumber,
		PRURL:                 t.prURL,
		RetryCount:            t.retryCount,
		ErrorCount:            t.errorCount,
		LastError:             t.lastError,
		PlanReviews:           t.PlanReviews(),
		RequiredApprovalCount: t.requiredApprovalCount,
		PlanApprovedAt:        copyTime(t.planApprovedAt),
		Metadata:              maps.Clone(t.metadata),
	}
}

// FromRecord rebuilds a Ticket from storage. It rejects records that break
// the CompletedAt-iff-terminal invariant.
func FromRecord(r Record, opts ...Option) (*Ticket, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidTicket)
	}
	if !r.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidTicket, r.State)
	}
	if r.State.IsTerminal() != (r.CompletedAt != nil) {
		return nil, fmt.Errorf("%w: completed_at does not match state %s", ErrInvalidTicket, r.State)
	}

	t := &Ticket{
		id:                    r.ID,
		tenantID:              r.TenantID,
		state:                 r.State,
		createdAt:             r.CreatedAt,
		updatedAt:             r.UpdatedAt,
		completedAt:           copyTime(r.CompletedAt),
		planBranch:            r.PlanBranch,
		planFilePath:          r.PlanFilePath,
		planMarkdown:          r.PlanMarkdown,
		prNumber:              r.PRNumber,
		prURL:                 r.PRURL,
		retryCount:            r.RetryCount,
		errorCount:            r.ErrorCount,
		lastError:             r.LastError,
		reviews:               append([]PlanReview(nil), r.PlanReviews...),
		requiredApprovalCount: r.RequiredApprovalCount,
		planApprovedAt:        copyTime(r.PlanApprovedAt),
		metadata:              maps.Clone(r.Metadata),
		now:                   time.Now,
	}
	if t.metadata == nil {
		t.metadata = make(map[string]string)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}
