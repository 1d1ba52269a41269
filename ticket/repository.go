package ticket

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository persists tickets. Get returns ErrNotFound for unknown ids.
type Repository interface {
	Save(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id string) (*Ticket, error)
	List(ctx context.Context, state WorkflowState) ([]*Ticket, error)
}

// MemoryRepository is an in-process Repository holding ticket records.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

// Save implements Repository.
func (r *MemoryRepository) Save(ctx context.Context, t *Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[t.ID()] = t.Record()
	return nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return FromRecord(rec)
}

// List implements Repository. An empty state lists every ticket. Results
// are ordered by creation time, oldest first.
func (r *MemoryRepository) List(ctx context.Context, state WorkflowState) ([]*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	recs := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if state == "" || rec.State == state {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	out := make([]*Ticket, 0, len(recs))
	for _, rec := range recs {
		t, err := FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
