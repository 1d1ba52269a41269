package ticket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasSufficientApprovals_NoReviewers(t *testing.T) {
	tk := postedTicket(t)
	assert.True(t, tk.HasSufficientApprovals())
	require.NoError(t, tk.ApprovePlan())
	assert.Equal(t, StatePlanApproved, tk.State())
	assert.NotNil(t, tk.PlanApprovedAt())
}

func TestQuorum_TwoOfThree(t *testing.T) {
	tk := postedTicket(t)
	require.NoError(t, tk.AssignReviewers([]string{"ana", "ben", "cy"}, nil))
	require.NoError(t, tk.RecordReview("ana", true, "lgtm", false))
	require.NoError(t, tk.RecordReview("ben", true, "ok", false))

	assert.False(t, tk.HasSufficientApprovals())

	err := tk.ApprovePlan()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientApprovals)
	assert.Contains(t, err.Error(), "Required: 3")
	assert.Contains(t, err.Error(), "Received: 2")

	var qe *QuorumError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 3, qe.Required)
	assert.Equal(t, 2, qe.Received)
	assert.Equal(t, StatePlanUnderReview, tk.State())

	require.NoError(t, tk.RecordReview("cy", true, "", false))
	assert.True(t, tk.HasSufficientApprovals())
	require.NoError(t, tk.ApprovePlan())
	assert.Equal(t, StatePlanApproved, tk.State())
}

func TestAssignReviewers(t *testing.T) {
	t.Run("empty required", func(t *testing.T) {
		tk := postedTicket(t)
		err := tk.AssignReviewers(nil, []string{"opt"})
		assert.ErrorIs(t, err, ErrNoRequiredReviewers)
		assert.Equal(t, StatePlanPosted, tk.State())
	})

	t.Run("optional reviews ignored for quorum", func(t *testing.T) {
		tk := postedTicket(t)
		require.NoError(t, tk.AssignReviewers([]string{"ana"}, []string{"opt1", "opt2"}))
		assert.Equal(t, 1, tk.RequiredApprovalCount())
		assert.Equal(t, StatePlanUnderReview, tk.State())

		require.NoError(t, tk.RecordReview("opt1", true, "", false))
		require.NoError(t, tk.RecordReview("opt2", true, "", false))
		assert.False(t, tk.HasSufficientApprovals())

		require.NoError(t, tk.RecordReview("ana", true, "", false))
		assert.True(t, tk.HasSufficientApprovals())
	})

	t.Run("optional rejection does not block quorum", func(t *testing.T) {
		tk := postedTicket(t)
		require.NoError(t, tk.AssignReviewers([]string{"ana"}, []string{"opt"}))
		require.NoError(t, tk.RecordReview("opt", false, "too big", false))
		require.NoError(t, tk.RecordReview("ana", true, "", false))
		assert.True(t, tk.HasSufficientApprovals())
		assert.True(t, tk.HasRejections())
	})

	t.Run("reassignment replaces reviews without new event", func(t *testing.T) {
		tk := postedTicket(t)
		require.NoError(t, tk.AssignReviewers([]string{"ana", "ben"}, nil))
		require.NoError(t, tk.RecordReview("ana", true, "", false))
		events := len(tk.Events())

		require.NoError(t, tk.AssignReviewers([]string{"cy"}, nil))
		assert.Equal(t, StatePlanUnderReview, tk.State())
		assert.Len(t, tk.Events(), events)
		assert.Equal(t, 1, tk.RequiredApprovalCount())
		reviews := tk.PlanReviews()
		require.Len(t, reviews, 1)
		assert.Equal(t, "cy", reviews[0].ReviewerID)
		assert.Equal(t, ReviewPending, reviews[0].Status)
	})

	t.Run("wrong state", func(t *testing.T) {
		tk := newTicket(t)
		assert.ErrorIs(t, tk.AssignReviewers([]string{"ana"}, nil), ErrInvalidTransition)
	})
}

func TestRecordReview_UnknownReviewer(t *testing.T) {
	tk := postedTicket(t)
	require.NoError(t, tk.AssignReviewers([]string{"ana"}, nil))
	assert.ErrorIs(t, tk.RecordReview("mallory", true, "", false), ErrReviewerNotAssigned)
}

func TestGetRejectionDetails_FirstOnly(t *testing.T) {
	tk := postedTicket(t)
	require.NoError(t, tk.AssignReviewers([]string{"ana", "ben"}, []string{"cy"}))
	assert.Nil(t, tk.GetRejectionDetails())
	assert.False(t, tk.HasRejections())

	require.NoError(t, tk.RecordReview("cy", false, "later one", false))
	require.NoError(t, tk.RecordReview("ana", false, "missing rollback", true))

	d := tk.GetRejectionDetails()
	require.NotNil(t, d)
	assert.Equal(t, "ana", d.ReviewerID)
	assert.Equal(t, "missing rollback", d.Reason)
	assert.True(t, d.RegenerateCompletely)
}

func TestResetReviewsForNewPlan(t *testing.T) {
	tk := postedTicket(t)
	require.NoError(t, tk.AssignReviewers([]string{"ana", "ben"}, nil))
	require.NoError(t, tk.RecordReview("ana", true, "ok", false))
	require.NoError(t, tk.RecordReview("ben", false, "no", true))

	tk.ResetReviewsForNewPlan()

	for _, r := range tk.PlanReviews() {
		assert.Equal(t, ReviewPending, r.Status, r.ReviewerID)
		assert.Empty(t, r.Decision)
		assert.Nil(t, r.ReviewedAt)
		assert.False(t, r.RegenerateCompletely)
	}
	assert.Nil(t, tk.PlanApprovedAt())
	assert.Equal(t, 2, tk.RequiredApprovalCount())
}

func TestResetReviewsForNewPlan_ClearsApprovedAt(t *testing.T) {
	tk := postedTicket(t)
	require.NoError(t, tk.ApprovePlan())
	require.NotNil(t, tk.PlanApprovedAt())

	tk.ResetReviewsForNewPlan()
	assert.Nil(t, tk.PlanApprovedAt())
}

func TestRejectPlan(t *testing.T) {
	tk := postedTicket(t)
	require.NoError(t, tk.AssignReviewers([]string{"ana"}, nil))
	require.NoError(t, tk.RejectPlan("wrong approach"))
	assert.Equal(t, StatePlanRejected, tk.State())
	assert.Equal(t, 1, tk.RetryCount())

	require.NoError(t, tk.TransitionTo(StatePlanning, "regenerate"))
	assert.ErrorIs(t, tk.RejectPlan("again"), ErrInvalidTransition)
}
