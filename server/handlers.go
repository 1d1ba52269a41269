package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

// ReviewRequest is the body of POST /tickets/:id/reviews.
type ReviewRequest struct {
	Approved             *bool  `json:"approved" binding:"required"`
	Decision             string `json:"decision" binding:"max=4000"`
	RegenerateCompletely bool   `json:"regenerate_completely"`
}

// ReviewResponse reports the ticket after the decision and what ran.
type ReviewResponse struct {
	Ticket ticket.Record `json:"ticket"`
	Graph  string        `json:"graph,omitempty"`
	Result *GraphResult  `json:"result,omitempty"`
}

// GraphResult is the JSON form of a graph.Result.
type GraphResult struct {
	State     string `json:"state"`
	Success   bool   `json:"success"`
	Suspended bool   `json:"suspended"`
	Error     string `json:"error,omitempty"`
}

// CheckpointView is a checkpoint with its state inlined as JSON.
type CheckpointView struct {
	CheckpointID  string            `json:"checkpoint_id"`
	GraphID       string            `json:"graph_id"`
	Status        checkpoint.Status `json:"status"`
	AgentName     string            `json:"agent_name,omitempty"`
	NextAgentType string            `json:"next_agent_type,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	State         json.RawMessage   `json:"state"`
}

// NewCheckpointView inlines cp.State, or null when it is not valid JSON.
func NewCheckpointView(cp checkpoint.Checkpoint) CheckpointView {
	state := json.RawMessage(cp.State)
	if !json.Valid(state) {
		state = json.RawMessage("null")
	}
	return CheckpointView{
		CheckpointID:  cp.CheckpointID,
		GraphID:       cp.GraphID,
		Status:        cp.Status,
		AgentName:     cp.AgentName,
		NextAgentType: cp.NextAgentType,
		CreatedAt:     cp.CreatedAt,
		State:         state,
	}
}

func (s *Server) health(c *gin.Context) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getTicket(c *gin.Context) {
	t, err := s.wf.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Record())
}

func (s *Server) getCheckpoints(c *gin.Context) {
	ticketID, graphID := c.Param("id"), c.Param("graph")

	history, _ := strconv.ParseBool(c.Query("history"))
	if history {
		cps, err := s.checkpoints.GetCheckpointHistory(c.Request.Context(), ticketID, graphID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		views := make([]CheckpointView, 0, len(cps))
		for _, cp := range cps {
			views = append(views, NewCheckpointView(cp))
		}
		c.JSON(http.StatusOK, views)
		return
	}

	cp, err := s.checkpoints.LoadCheckpoint(c.Request.Context(), ticketID, graphID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if cp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no checkpoint"})
		return
	}
	c.JSON(http.StatusOK, NewCheckpointView(*cp))
}

func (s *Server) recordReview(c *gin.Context) {
	claims := decisionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing decision token"})
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !*req.Approved && req.Decision == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a rejection needs a decision explaining it"})
		return
	}

	ticketID := c.Param("id")
	p, err := s.wf.RecordReview(c.Request.Context(), ticketID, workflow.ReviewDecision{
		ReviewerID:           claims.Reviewer(),
		Approved:             *req.Approved,
		Decision:             req.Decision,
		RegenerateCompletely: req.RegenerateCompletely,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("review recorded",
		"ticket_id", ticketID,
		"reviewer", claims.Reviewer(),
		"approved", *req.Approved,
		"graph", p.Graph,
	)

	resp := ReviewResponse{Graph: p.Graph}
	if p.Ticket != nil {
		resp.Ticket = p.Ticket.Record()
	}
	if p.Graph != "" {
		resp.Result = &GraphResult{
			State:     p.Result.State,
			Success:   p.Result.Success,
			Suspended: p.Result.Suspended(),
		}
		if p.Result.Err != nil {
			resp.Result.Error = p.Result.Err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ticket.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ticket.ErrReviewerNotAssigned), errors.Is(err, auth.ErrWrongTicket):
		status = http.StatusForbidden
	case errors.Is(err, ticket.ErrBusy), errors.Is(err, ticket.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, checkpoint.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
