package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/ticketflow/checkpoint"
)

// CheckpointStore is a checkpoint.Store backed by SQLite.
type CheckpointStore struct {
	db    *sql.DB
	clock *checkpoint.Clock
}

var _ checkpoint.Store = (*CheckpointStore)(nil)

const checkpointColumns = `id, ticket_id, graph_id, checkpoint_id, state_json, agent_name, next_agent_type, status, created_at`

// SaveCheckpoint implements checkpoint.Store. Writing an existing active
// triple updates that row in place.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, ticketID, graphID, checkpointID string, snap checkpoint.Snapshot) error {
	if err := checkpoint.ValidateKey(ticketID, graphID, checkpointID); err != nil {
		return err
	}
	state, err := snap.Encode()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (`+checkpointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'active', ?)
		ON CONFLICT(ticket_id, graph_id, checkpoint_id) WHERE status = 'active' DO UPDATE SET
			state_json = excluded.state_json,
			agent_name = excluded.agent_name,
			next_agent_type = excluded.next_agent_type,
			created_at = excluded.created_at
	`, uuid.NewString(), ticketID, graphID, checkpointID, string(state),
		snap.AgentName, snap.NextAgentType, s.clock.Next().UnixNano())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements checkpoint.Store.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, ticketID, graphID string) (*checkpoint.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+checkpointColumns+` FROM checkpoints
		WHERE ticket_id = ? AND graph_id = ? AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, ticketID, graphID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// GetCheckpointHistory implements checkpoint.Store.
func (s *CheckpointStore) GetCheckpointHistory(ctx context.Context, ticketID, graphID string) ([]checkpoint.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+checkpointColumns+` FROM checkpoints
		WHERE ticket_id = ? AND graph_id = ?
		ORDER BY created_at DESC
	`, ticketID, graphID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint history: %w", err)
	}
	defer rows.Close()

	var out []checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, *cp)
	}
	return out, rows.Err()
}

// SupersedeCheckpoints implements checkpoint.Store.
func (s *CheckpointStore) SupersedeCheckpoints(ctx context.Context, ticketID, graphID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET status = 'superseded' WHERE ticket_id = ? AND graph_id = ? AND status = 'active'`,
		ticketID, graphID)
	if err != nil {
		return fmt.Errorf("supersede checkpoints: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*checkpoint.Checkpoint, error) {
	var (
		cp      checkpoint.Checkpoint
		state   string
		status  string
		created int64
	)
	if err := row.Scan(&cp.ID, &cp.TicketID, &cp.GraphID, &cp.CheckpointID, &state,
		&cp.AgentName, &cp.NextAgentType, &status, &created); err != nil {
		return nil, err
	}
	cp.State = []byte(state)
	cp.Status = checkpoint.Status(status)
	cp.CreatedAt = time.Unix(0, created).UTC()
	return &cp, nil
}
