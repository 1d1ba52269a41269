package ticket

import (
	"fmt"
	"time"
)

// ReviewStatus is one reviewer's verdict on the current plan revision.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// PlanReview is one reviewer's verdict on the current plan.
type PlanReview struct {
	ReviewerID           string       `json:"reviewer_id"`
	IsRequired           bool         `json:"is_required"`
	Status               ReviewStatus `json:"status"`
	Decision             string       `json:"decision,omitempty"`
	RegenerateCompletely bool         `json:"regenerate_completely,omitempty"`
	ReviewedAt           *time.Time   `json:"reviewed_at,omitempty"`
}

// RejectionDetails describes the first rejected review.
type RejectionDetails struct {
	ReviewerID           string
	Reason               string
	RegenerateCompletely bool
}

// AssignReviewers replaces the review set and moves the ticket to
// PlanUnderReview. Reassigning while already under review keeps the state
// without recording another event.
func (t *Ticket) AssignReviewers(required, optional []string) error {
	if t.state != StatePlanPosted && t.state != StatePlanUnderReview {
		return &TransitionError{TicketID: t.id, From: t.state, To: StatePlanUnderReview}
	}
	if len(required) == 0 {
		return ErrNoRequiredReviewers
	}

	reviews := make([]PlanReview, 0, len(required)+len(optional))
	for _, id := range required {
		reviews = append(reviews, PlanReview{ReviewerID: id, IsRequired: true, Status: ReviewPending})
	}
	for _, id := range optional {
		reviews = append(reviews, PlanReview{ReviewerID: id, Status: ReviewPending})
	}
	t.reviews = reviews
	t.requiredApprovalCount = len(required)
	t.touch()

	if t.state == StatePlanUnderReview {
		return nil
	}
	return t.TransitionTo(StatePlanUnderReview, fmt.Sprintf("assigned %d required reviewers", len(required)))
}

// RecordReview sets one reviewer's verdict.
func (t *Ticket) RecordReview(reviewerID string, approved bool, decision string, regenerate bool) error {
	for i := range t.reviews {
		r := &t.reviews[i]
		if r.ReviewerID != reviewerID {
			continue
		}
		now := t.now().UTC()
		r.Status = ReviewRejected
		if approved {
			r.Status = ReviewApproved
		}
		r.Decision = decision
		r.RegenerateCompletely = !approved && regenerate
		r.ReviewedAt = &now
		t.touch()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrReviewerNotAssigned, reviewerID)
}

// ApprovalCount returns the number of approved required reviews.
func (t *Ticket) ApprovalCount() int {
	n := 0
	for _, r := range t.reviews {
		if r.IsRequired && r.Status == ReviewApproved {
			n++
		}
	}
	return n
}

// HasSufficientApprovals reports whether the required-approval quorum is met.
// A ticket with no reviewers at all always passes; optional reviews never count.
func (t *Ticket) HasSufficientApprovals() bool {
	if len(t.reviews) == 0 {
		return true
	}
	return t.ApprovalCount() >= t.requiredApprovalCount
}

// HasRejections reports whether any review, required or optional, rejected the plan.
func (t *Ticket) HasRejections() bool {
	return t.GetRejectionDetails() != nil
}

// GetRejectionDetails returns the first rejected review, or nil.
func (t *Ticket) GetRejectionDetails() *RejectionDetails {
	for _, r := range t.reviews {
		if r.Status == ReviewRejected {
			return &RejectionDetails{
				ReviewerID:           r.ReviewerID,
				Reason:               r.Decision,
				RegenerateCompletely: r.RegenerateCompletely,
			}
		}
	}
	return nil
}

// PendingReviewers returns reviewers who have not decided yet.
func (t *Ticket) PendingReviewers() []string {
	var ids []string
	for _, r := range t.reviews {
		if r.Status == ReviewPending {
			ids = append(ids, r.ReviewerID)
		}
	}
	return ids
}

// ApprovePlan advances the ticket to PlanApproved once quorum is met.
func (t *Ticket) ApprovePlan() error {
	if !t.HasSufficientApprovals() {
		return &QuorumError{
			TicketID: t.id,
			Required: t.requiredApprovalCount,
			Received: t.ApprovalCount(),
		}
	}
	if err := t.TransitionTo(StatePlanApproved, "plan approved"); err != nil {
		return err
	}
	now := t.now().UTC()
	t.planApprovedAt = &now
	return nil
}

// RejectPlan moves a plan under review to PlanRejected and counts the retry.
func (t *Ticket) RejectPlan(reason string) error {
	if t.state != StatePlanUnderReview {
		return &TransitionError{TicketID: t.id, From: t.state, To: StatePlanRejected}
	}
	if err := t.TransitionTo(StatePlanRejected, reason); err != nil {
		return err
	}
	t.retryCount++
	return nil
}

// ResetReviewsForNewPlan returns every review to Pending for a regenerated plan.
func (t *Ticket) ResetReviewsForNewPlan() {
	for i := range t.reviews {
		t.reviews[i].Status = ReviewPending
		t.reviews[i].Decision = ""
		t.reviews[i].RegenerateCompletely = false
		t.reviews[i].ReviewedAt = nil
	}
	t.planApprovedAt = nil
	t.touch()
}
