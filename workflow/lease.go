package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/ticketflow/ticket"
)

// ErrTicketBusy is returned when another operation holds the ticket's lease.
var ErrTicketBusy = ticket.ErrBusy

// Leaser grants exclusive, time-bounded holds on tickets. Acquire returns an
// error wrapping ErrTicketBusy when someone else holds an unexpired lease.
// store.Leases implements it over SQLite; MemoryLeases in process.
type Leaser interface {
	Acquire(ctx context.Context, ticketID, holder string, ttl time.Duration) error
	Release(ctx context.Context, ticketID, holder string) error
}

type lease struct {
	holder  string
	expires time.Time
}

// MemoryLeases is an in-process Leaser.
type MemoryLeases struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewMemoryLeases creates an empty MemoryLeases.
func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{leases: make(map[string]lease), now: time.Now}
}

// Acquire implements Leaser.
func (m *MemoryLeases) Acquire(ctx context.Context, ticketID, holder string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.leases[ticketID]; ok && cur.holder != holder && now.Before(cur.expires) {
		return fmt.Errorf("%w: %s", ErrTicketBusy, ticketID)
	}
	m.leases[ticketID] = lease{holder: holder, expires: now.Add(ttl)}
	return nil
}

// Release implements Leaser.
func (m *MemoryLeases) Release(_ context.Context, ticketID, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.leases[ticketID]; ok && cur.holder == holder {
		delete(m.leases, ticketID)
	}
	return nil
}
