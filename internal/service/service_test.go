package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"substance-journal/internal/repository"
)

var base = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "journal.db"), zap.NewNop(), 0)
	require.NoError(t, err, "open db")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewStore(db, repository.NewTracker())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
