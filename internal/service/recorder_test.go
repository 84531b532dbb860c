package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/repository"
	"github.com/bouteflan/penrose-experiment/tests/helpers"
)

func TestRecorderRetriesFailedWrite(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	rec := newRecorder(db, 8, 3)
	go rec.run()
	defer rec.close()

	session := &domain.SessionRecord{SessionID: "s1", Phase: domain.PhaseAdhesion, IsActive: true, StartedAt: time.Now()}
	var calls atomic.Int32
	rec.enqueue("session", "s1", func(ctx context.Context, st store.Store) error {
		if calls.Add(1) == 1 {
			return errors.New("database is locked")
		}
		return st.UpsertSession(ctx, session)
	})

	require.NoError(t, rec.flush(ctx))

	got, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRecorderGivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	rec := newRecorder(db, 8, 2)
	go rec.run()
	defer rec.close()

	var calls atomic.Int32
	rec.enqueue("event", "s1", func(ctx context.Context, st store.Store) error {
		calls.Add(1)
		return errors.New("disk full")
	})

	require.NoError(t, rec.flush(ctx))
	require.NoError(t, rec.flush(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	// Not started: nothing drains the queue.
	rec := newRecorder(db, 1, 1)

	noop := func(ctx context.Context, st store.Store) error { return nil }
	rec.enqueue("event", "s1", noop)
	rec.enqueue("event", "s1", noop)

	assert.Len(t, rec.queue, 1)
}
