package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/graph"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var tokenCfg = auth.Config{Secret: []byte("server-test-secret-at-least-32-bytes"), Issuer: "ticketflow"}

type fakeWorkflow struct {
	tickets   map[string]*ticket.Ticket
	reviewErr error
	decisions []workflow.ReviewDecision
}

func (f *fakeWorkflow) Get(ctx context.Context, id string) (*ticket.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, ticket.ErrNotFound
	}
	return t, nil
}

func (f *fakeWorkflow) RecordReview(ctx context.Context, id string, d workflow.ReviewDecision) (workflow.Progress, error) {
	if f.reviewErr != nil {
		return workflow.Progress{}, f.reviewErr
	}
	f.decisions = append(f.decisions, d)
	return workflow.Progress{
		Ticket: f.tickets[id],
		Graph:  graph.PlanningGraphID,
		Result: graph.Result{State: "awaiting_approval"},
	}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeWorkflow, *checkpoint.MemoryStore) {
	t.Helper()
	tk, err := ticket.New("TK-1", "acme")
	require.NoError(t, err)
	wf := &fakeWorkflow{tickets: map[string]*ticket.Ticket{"TK-1": tk}}
	cps := checkpoint.NewMemoryStore()
	return New(wf, cps, tokenCfg, opts...), wf, cps
}

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func issue(t *testing.T, ticketID, reviewer string) string {
	t.Helper()
	token, err := auth.IssueDecisionToken(tokenCfg, ticketID, reviewer)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	s, _, _ = newTestServer(t, WithPinger(failingPinger{}))
	w = do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database is locked")
}

func TestMetrics(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/healthz", "", "")

	w := do(t, s, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ticketflow_http_requests_total{method="GET",route="/healthz",status="200"}`)
}

func TestGetTicket(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/tickets/TK-1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec ticket.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "TK-1", rec.ID)
	assert.Equal(t, ticket.StateTriggered, rec.State)

	w = do(t, s, http.MethodGet, "/tickets/TK-404", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCheckpoints(t *testing.T) {
	s, _, cps := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, cps.SaveCheckpoint(ctx, "TK-1", "planning", "plan_generated", checkpoint.Snapshot{Value: map[string]int{"revision": 1}}))
	require.NoError(t, cps.SaveCheckpoint(ctx, "TK-1", "planning", "awaiting_approval", checkpoint.Snapshot{Value: map[string]int{"revision": 1}, NextAgentType: "human"}))

	w := do(t, s, http.MethodGet, "/tickets/TK-1/checkpoints/planning", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var latest CheckpointView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, "awaiting_approval", latest.CheckpointID)
	assert.Equal(t, "human", latest.NextAgentType)
	assert.JSONEq(t, `{"revision":1}`, string(latest.State))

	w = do(t, s, http.MethodGet, "/tickets/TK-1/checkpoints/planning?history=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []CheckpointView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "awaiting_approval", all[0].CheckpointID)

	w = do(t, s, http.MethodGet, "/tickets/TK-1/checkpoints/implementation", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordReview(t *testing.T) {
	s, wf, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/tickets/TK-1/reviews", issue(t, "TK-1", "ana"),
		`{"approved":false,"decision":"split the migration","regenerate_completely":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, wf.decisions, 1)
	assert.Equal(t, workflow.ReviewDecision{
		ReviewerID:           "ana",
		Approved:             false,
		Decision:             "split the migration",
		RegenerateCompletely: true,
	}, wf.decisions[0])

	var resp ReviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "planning", resp.Graph)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Suspended)
	assert.Equal(t, "TK-1", resp.Ticket.ID)
}

func TestRecordReview_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		token     func(t *testing.T) string
		body      string
		reviewErr error
		want      int
	}{
		{
			name:  "no token",
			token: func(*testing.T) string { return "" },
			body:  `{"approved":true}`,
			want:  http.StatusUnauthorized,
		},
		{
			name:  "garbage token",
			token: func(*testing.T) string { return "nope" },
			body:  `{"approved":true}`,
			want:  http.StatusUnauthorized,
		},
		{
			name:  "token for another ticket",
			token: func(t *testing.T) string { return issue(t, "TK-2", "ana") },
			body:  `{"approved":true}`,
			want:  http.StatusForbidden,
		},
		{
			name:  "missing verdict",
			token: func(t *testing.T) string { return issue(t, "TK-1", "ana") },
			body:  `{"decision":"lgtm"}`,
			want:  http.StatusBadRequest,
		},
		{
			name:  "rejection without reason",
			token: func(t *testing.T) string { return issue(t, "TK-1", "ana") },
			body:  `{"approved":false}`,
			want:  http.StatusBadRequest,
		},
		{
			name:      "reviewer not assigned",
			token:     func(t *testing.T) string { return issue(t, "TK-1", "zed") },
			body:      `{"approved":true}`,
			reviewErr: ticket.ErrReviewerNotAssigned,
			want:      http.StatusForbidden,
		},
		{
			name:      "ticket busy",
			token:     func(t *testing.T) string { return issue(t, "TK-1", "ana") },
			body:      `{"approved":true}`,
			reviewErr: ticket.ErrBusy,
			want:      http.StatusConflict,
		},
		{
			name:      "not under review",
			token:     func(t *testing.T) string { return issue(t, "TK-1", "ana") },
			body:      `{"approved":true}`,
			reviewErr: &ticket.TransitionError{TicketID: "TK-1", From: ticket.StateTriggered, To: ticket.StatePlanApproved},
			want:      http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, wf, _ := newTestServer(t)
			wf.reviewErr = tt.reviewErr

			w := do(t, s, http.MethodPost, "/tickets/TK-1/reviews", tt.token(t), tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
