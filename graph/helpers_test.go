package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/notify"
)

var errStoreDown = errors.New("store down")

// flakyStore fails SaveCheckpoint for one checkpoint id.
type flakyStore struct {
	*checkpoint.MemoryStore
	failOn string
}

func (s *flakyStore) SaveCheckpoint(ctx context.Context, ticketID, graphID, checkpointID string, snap checkpoint.Snapshot) error {
	if checkpointID == s.failOn {
		return errStoreDown
	}
	return s.MemoryStore.SaveCheckpoint(ctx, ticketID, graphID, checkpointID, snap)
}

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Notify(_ context.Context, ev notify.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []notify.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notify.EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func latest(t *testing.T, store checkpoint.Store, ticketID, graphID string) *checkpoint.Checkpoint {
	t.Helper()
	cp, err := store.LoadCheckpoint(context.Background(), ticketID, graphID)
	require.NoError(t, err)
	require.NotNil(t, cp, "no active checkpoint for %s/%s", ticketID, graphID)
	return cp
}

func historyIDs(t *testing.T, store checkpoint.Store, ticketID, graphID string) []string {
	t.Helper()
	rows, err := store.GetCheckpointHistory(context.Background(), ticketID, graphID)
	require.NoError(t, err)
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CheckpointID
	}
	return ids
}
