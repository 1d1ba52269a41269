package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle status of a stored checkpoint row.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// Errors returned by stores.
var (
	// ErrInvalidKey indicates an empty ticket, graph, or checkpoint id.
	ErrInvalidKey = errors.New("invalid checkpoint key")
)

// Checkpoint is a durable snapshot of one graph's progress for one ticket.
// Rows are immutable once written, except that writing the same
// (TicketID, GraphID, CheckpointID) triple again replaces the active row.
type Checkpoint struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticket_id"`
	GraphID       string    `json:"graph_id"`
	CheckpointID  string    `json:"checkpoint_id"`
	State         []byte    `json:"state"`
	AgentName     string    `json:"agent_name,omitempty"`
	NextAgentType string    `json:"next_agent_type,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Decode unmarshals the stored state into v.
func (c *Checkpoint) Decode(v any) error {
	if err := json.Unmarshal(c.State, v); err != nil {
		return fmt.Errorf("decode checkpoint %s/%s/%s: %w", c.TicketID, c.GraphID, c.CheckpointID, err)
	}
	return nil
}

// Snapshot is what a graph hands to SaveCheckpoint: a typed state value plus
// optional bookkeeping about the agent that produced it and the one expected next.
type Snapshot struct {
	Value         any
	AgentName     string
	NextAgentType string
}

// Encode marshals the snapshot value to JSON.
func (s Snapshot) Encode() ([]byte, error) {
	if s.Value == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(s.Value)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint state: %w", err)
	}
	return data, nil
}

// Store persists checkpoints.
type Store interface {
	// SaveCheckpoint upserts the active row for (ticketID, graphID, checkpointID).
	// It never leaves two active rows for the same triple.
	SaveCheckpoint(ctx context.Context, ticketID, graphID, checkpointID string, snap Snapshot) error

	// LoadCheckpoint returns the most recently written active checkpoint for
	// the graph, or nil if there is none.
	LoadCheckpoint(ctx context.Context, ticketID, graphID string) (*Checkpoint, error)

	// GetCheckpointHistory returns every checkpoint for the graph, most recent
	// first, including superseded rows. It is for audit and debugging only.
	GetCheckpointHistory(ctx context.Context, ticketID, graphID string) ([]Checkpoint, error)

	// SupersedeCheckpoints marks every active checkpoint for the graph as
	// superseded. Graphs call it when a run starts over from the beginning.
	SupersedeCheckpoints(ctx context.Context, ticketID, graphID string) error
}

// ValidateKey checks the parts of a checkpoint key.
func ValidateKey(ticketID, graphID, checkpointID string) error {
	switch {
	case ticketID == "":
		return fmt.Errorf("%w: empty ticket id", ErrInvalidKey)
	case graphID == "":
		return fmt.Errorf("%w: empty graph id", ErrInvalidKey)
	case checkpointID == "":
		return fmt.Errorf("%w: empty checkpoint id", ErrInvalidKey)
	}
	return nil
}

// Clock hands out strictly increasing timestamps so that two writes in the
// same clock tick still order correctly for "latest checkpoint" reads.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock creates a Clock over now; nil uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns a UTC timestamp later than any previously returned.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
