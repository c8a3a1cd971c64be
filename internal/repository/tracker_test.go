package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"substance-journal/internal/model"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestTrackerFiltersTables(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := NewTracker()

	ings := tr.Subscribe(ctx, TableIngestions)
	all := tr.Subscribe(ctx)

	tr.Notify(TableCustomUnits)
	receive(t, all)
	select {
	case <-ings:
		t.Fatal("ingestion subscriber notified for custom units")
	default:
	}

	// Bursts coalesce into one pending signal.
	tr.Notify(TableIngestions)
	tr.Notify(TableIngestions)
	receive(t, ings)
	select {
	case <-ings:
		t.Fatal("expected coalesced notification")
	default:
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ings
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTransactionNotifiesAfterCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)
	changes := s.Tracker().Subscribe(ctx, TableExperiences)

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Experiences.Create(ctx, &model.Experience{Title: "a"}); err != nil {
			return err
		}
		select {
		case <-changes:
			t.Error("notified before commit")
		default:
		}
		return nil
	})
	require.NoError(t, err)
	receive(t, changes)

	failed := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Experiences.Create(ctx, &model.Experience{Title: "b"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, failed)
	select {
	case <-changes:
		t.Fatal("rolled back transaction notified")
	default:
	}

	exps, err := s.Experiences.List(ctx)
	require.NoError(t, err)
	assert.Len(t, exps, 1)
}

func TestObserveReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	results := Observe(ctx, s.Tracker(), []string{TableExperiences}, s.Experiences.List)

	first := receive(t, results)
	require.NoError(t, first.Err)
	assert.Empty(t, first.Value)

	require.NoError(t, s.Experiences.Create(ctx, &model.Experience{Title: "new"}))

	second := receive(t, results)
	require.NoError(t, second.Err)
	require.Len(t, second.Value, 1)
	assert.Equal(t, "new", second.Value[0].Title)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-results
		return !ok
	}, time.Second, 10*time.Millisecond)
}
