package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/randalmurphal/ticketflow/ticket"
)

// Leases grants time-bounded exclusive holds on tickets. An expired lease
// can be taken over by any holder.
type Leases struct {
	db  *sql.DB
	now func() time.Time
}

// Acquire takes the lease on ticketID for holder. It returns ticket.ErrBusy
// when another holder has an unexpired lease. Re-acquiring an own lease
// extends it.
func (l *Leases) Acquire(ctx context.Context, ticketID, holder string, ttl time.Duration) error {
	now := l.now().UTC()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO leases (ticket_id, holder_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			holder_id = excluded.holder_id,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
		WHERE leases.expires_at <= ? OR leases.holder_id = excluded.holder_id
	`, ticketID, holder, now.Add(ttl).UnixNano(), now.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("acquire lease on %s: %w", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lease on %s: %w", ticketID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ticket.ErrBusy, ticketID)
	}
	return nil
}

// Release drops holder's lease on ticketID. Releasing a lease that is not
// held is not an error.
func (l *Leases) Release(ctx context.Context, ticketID, holder string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM leases WHERE ticket_id = ? AND holder_id = ?`, ticketID, holder)
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", ticketID, err)
	}
	return nil
}

// Holder returns the current unexpired holder of ticketID, or "".
func (l *Leases) Holder(ctx context.Context, ticketID string) (string, error) {
	var holder string
	err := l.db.QueryRowContext(ctx,
		`SELECT holder_id FROM leases WHERE ticket_id = ? AND expires_at > ?`,
		ticketID, l.now().UTC().UnixNano()).Scan(&holder)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query lease on %s: %w", ticketID, err)
	}
	return holder, nil
}
