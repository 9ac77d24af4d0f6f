package snapshot

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/romlint/internal/db"
	"github.com/michaelscutari/romlint/internal/event"
)

func finishedRun(t *testing.T, rec *Recording) {
	t.Helper()
	summary := event.NewSummary()
	summary.AddSuccess("snes")
	summary.MarkEnded()
	require.NoError(t, rec.Handle(event.Report{Path: "/roms/snes/a.sfc", System: "snes"}))
	require.NoError(t, rec.Handle(event.Finished{Summary: summary}))
	require.NoError(t, rec.Close())
}

func TestManagerRecordsLatestAndRetention(t *testing.T) {
	outDir := t.TempDir()
	mgr := NewManager(outDir, 1)
	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return clock }

	ctx := context.Background()
	first, err := mgr.Begin(ctx, "/roms")
	require.NoError(t, err)
	finishedRun(t, first)
	assert.Equal(t, "romlint-20261019-120000.db", filepath.Base(first.Path()))
	assert.FileExists(t, first.Path())

	latest, err := mgr.GetLatest()
	require.NoError(t, err)
	firstResolved, err := filepath.EvalSymlinks(first.Path())
	require.NoError(t, err)
	assert.Equal(t, firstResolved, latest)

	database, err := sql.Open("sqlite", latest)
	require.NoError(t, err)
	require.NoError(t, db.ApplyReadPragmas(database))
	meta, err := db.GetRunMeta(database)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.TotalPass)
	database.Close()

	clock = clock.Add(time.Minute)
	second, err := mgr.Begin(ctx, "/roms")
	require.NoError(t, err)
	finishedRun(t, second)

	_, err = os.Stat(first.Path())
	assert.True(t, os.IsNotExist(err), "first snapshot should be pruned")

	snapshots, err := mgr.ListSnapshots()
	require.NoError(t, err)
	assert.Equal(t, []string{second.Path()}, snapshots)
}

func TestManagerSameSecondNames(t *testing.T) {
	outDir := t.TempDir()
	mgr := NewManager(outDir, 0)
	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return clock }

	ctx := context.Background()
	var paths []string
	for i := 0; i < 2; i++ {
		rec, err := mgr.Begin(ctx, "/roms")
		require.NoError(t, err)
		finishedRun(t, rec)
		paths = append(paths, rec.Path())
	}

	assert.NotEqual(t, paths[0], paths[1])
	snapshots, err := mgr.ListSnapshots()
	require.NoError(t, err)
	assert.Equal(t, paths, snapshots)
}

func TestManagerDiscardsUnfinishedRun(t *testing.T) {
	outDir := t.TempDir()
	mgr := NewManager(outDir, 0)

	rec, err := mgr.Begin(context.Background(), "/roms")
	require.NoError(t, err)
	require.NoError(t, rec.Handle(event.Report{Path: "/roms/snes/a.sfc", System: "snes"}))
	require.NoError(t, rec.Close())

	assert.Empty(t, rec.Path())
	snapshots, err := mgr.ListSnapshots()
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	assert.NoFileExists(t, rec.tempPath)
}

func TestManagerLockIsExclusive(t *testing.T) {
	outDir := t.TempDir()
	first := NewManager(outDir, 0)
	second := NewManager(outDir, 0)

	rec, err := first.Begin(context.Background(), "/roms")
	require.NoError(t, err)

	_, err = second.Begin(context.Background(), "/roms")
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, rec.Close())
}
