package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and is
// meant for tests and single-process runs that do not need durability.
type MemoryStore struct {
	mu    sync.RWMutex
	rows  []Checkpoint
	clock *Clock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used for CreatedAt.
func WithMemoryClock(c *Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = c }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{clock: NewClock(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveCheckpoint implements Store.
func (s *MemoryStore) SaveCheckpoint(ctx context.Context, ticketID, graphID, checkpointID string, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(ticketID, graphID, checkpointID); err != nil {
		return err
	}
	state, err := snap.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Next()
	for i := range s.rows {
		r := &s.rows[i]
		if r.Status == StatusActive && r.TicketID == ticketID && r.GraphID == graphID && r.CheckpointID == checkpointID {
			r.State = state
			r.AgentName = snap.AgentName
			r.NextAgentType = snap.NextAgentType
			r.CreatedAt = now
			return nil
		}
	}

	s.rows = append(s.rows, Checkpoint{
		ID:            uuid.NewString(),
		TicketID:      ticketID,
		GraphID:       graphID,
		CheckpointID:  checkpointID,
		State:         state,
		AgentName:     snap.AgentName,
		NextAgentType: snap.NextAgentType,
		Status:        StatusActive,
		CreatedAt:     now,
	})
	return nil
}

// LoadCheckpoint implements Store.
func (s *MemoryStore) LoadCheckpoint(ctx context.Context, ticketID, graphID string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Checkpoint
	for i := range s.rows {
		r := s.rows[i]
		if r.Status != StatusActive || r.TicketID != ticketID || r.GraphID != graphID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			cp := r
			latest = &cp
		}
	}
	if latest != nil {
		latest.State = append([]byte(nil), latest.State...)
	}
	return latest, nil
}

// GetCheckpointHistory implements Store.
func (s *MemoryStore) GetCheckpointHistory(ctx context.Context, ticketID, graphID string) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Checkpoint
	for _, r := range s.rows {
		if r.TicketID == ticketID && r.GraphID == graphID {
			r.State = append([]byte(nil), r.State...)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SupersedeCheckpoints implements Store.
func (s *MemoryStore) SupersedeCheckpoints(ctx context.Context, ticketID, graphID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		r := &s.rows[i]
		if r.Status == StatusActive && r.TicketID == ticketID && r.GraphID == graphID {
			r.Status = StatusSuperseded
		}
	}
	return nil
}
