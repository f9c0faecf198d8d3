package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/findary/internal/stats"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(dir string, startedAt time.Time) *Run {
	return &Run{
		Directory: dir,
		StartedAt: startedAt,
		Duration:  1500 * time.Millisecond,
		Walked:    12,
		Totals: stats.Totals{
			PlainText:   7,
			EncodedText: 2,
			Binary:      3,
			Failed:      1,
			Ignored:     4,
			Tracked:     2,
			LFSFiles:    5,
			Encodings: []stats.EncodingCount{
				{Name: "UTF-16LE", Count: 1},
				{Name: "UTF-8", Count: 1},
			},
		},
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{name: "file database", dbPath: filepath.Join(t.TempDir(), "history.db")},
		{name: "in-memory database", dbPath: ":memory:"},
		{name: "creates parent directories", dbPath: filepath.Join(t.TempDir(), "nested", "dir", "history.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			version, err := store.SchemaVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.ApplyMigrations(context.Background()))
	require.NoError(t, store.ApplyMigrations(context.Background()))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestRecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := sampleRun("/repo", started)
	id, err := store.RecordRun(ctx, run)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "generated ID should be a UUID")
	assert.Equal(t, id, run.ID)

	got, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/repo", got.Directory)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.Equal(t, 12, got.Walked)
	assert.Equal(t, run.Totals, got.Totals)
}

func TestRecordRunKeepsProvidedID(t *testing.T) {
	store := newTestStore(t)
	run := sampleRun("/repo", time.Now())
	run.ID = "fixed-id"

	id, err := store.RecordRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
}

func TestRecordRunDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("/repo", time.Now())
	_, err := store.RecordRun(ctx, run)
	require.NoError(t, err)

	again := sampleRun("/repo", time.Now())
	again.ID = run.ID
	_, err = store.RecordRun(ctx, again)
	assert.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.RecordRun(ctx, sampleRun("/repo", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].StartedAt.After(all[i].StartedAt), "runs should be newest first")
	}
	assert.Empty(t, all[0].Totals.Encodings, "ListRuns does not load encodings")

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.True(t, base.Add(4*time.Hour).Equal(limited[0].StartedAt))
}

func TestListRunsEmpty(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := store.RecordRun(ctx, sampleRun("/repo", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)

	_, err = store.GetRun(ctx, ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)

	var orphans int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM run_encodings WHERE run_id NOT IN (SELECT id FROM runs)`).Scan(&orphans))
	assert.Zero(t, orphans, "encodings should be pruned with their run")

	removed, err = store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	id, err := store.RecordRun(ctx, sampleRun("/repo", time.Now()))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/repo", got.Directory)
}
