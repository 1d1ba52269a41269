package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/ticketflow/ticket"
)

// TicketStore is a ticket.Repository backed by SQLite. Tickets are stored
// as JSON records with their id, tenant, and state broken out for queries.
type TicketStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ticket.Repository = (*TicketStore)(nil)

// Save implements ticket.Repository.
func (s *TicketStore) Save(ctx context.Context, t *ticket.Ticket) error {
	rec := t.Record()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, tenant_id, state, record_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			state = excluded.state,
			record_json = excluded.record_json,
			updated_at = excluded.updated_at
	`, rec.ID, rec.TenantID, string(rec.State), string(data),
		rec.CreatedAt.UnixNano(), s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("save ticket %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements ticket.Repository.
func (s *TicketStore) Get(ctx context.Context, id string) (*ticket.Ticket, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record_json FROM tickets WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ticket.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query ticket %s: %w", id, err)
	}
	return decodeTicket(data)
}

// List implements ticket.Repository. An empty state lists every ticket,
// oldest first.
func (s *TicketStore) List(ctx context.Context, state ticket.WorkflowState) ([]*ticket.Ticket, error) {
	query := `SELECT record_json FROM tickets`
	var args []any
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []*ticket.Ticket
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t, err := decodeTicket(data)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func decodeTicket(data string) (*ticket.Ticket, error) {
	var rec ticket.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return ticket.FromRecord(rec)
}
