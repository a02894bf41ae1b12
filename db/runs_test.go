package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/errors"
	aistest "github.com/teranos/aisguard/internal/testing"
	"github.com/teranos/aisguard/pipeline"
)

func newTestStore(t *testing.T) (*RunStore, *sql.DB) {
	t.Helper()
	db := aistest.CreateTestDB(t)
	require.NoError(t, Migrate(db, nil))
	return NewRunStore(db, zap.NewNop().Sugar()), db
}

func sampleSummary(runID string, started time.Time) *pipeline.Summary {
	return &pipeline.Summary{
		RunID:        runID,
		Chunks:       2,
		Records:      1200,
		Tracks:       40,
		Counts:       map[ais.AnomalyKind]int{ais.KindLocationJump: 3, ais.KindSpeed: 7},
		Inconsistent: 12,
		FlaggedCells: 2,
		Stages: []pipeline.StageTotals{
			{Name: pipeline.StageA, Duration: 1500 * time.Millisecond, Degraded: 1},
			{Name: pipeline.StageB, Duration: 900 * time.Millisecond, ItemFailures: 2},
			{Name: pipeline.StageC, Duration: 300 * time.Millisecond},
		},
		State:    pipeline.StateDone,
		Started:  started,
		Duration: 3 * time.Second,
	}
}

func TestRunStoreLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.BeginRun(ctx, "run-1", "aisdk.csv", started))

	running, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateIdle, running.State)

	chunk := &pipeline.Report{
		RunID:   "run-1",
		Chunk:   1,
		Records: 600,
		Jumps:   ais.NewTable(ais.KindLocationJump),
		State:   pipeline.StateDone,
	}
	require.NoError(t, store.WriteChunk(ctx, chunk))
	chunk.Chunk = 2
	require.NoError(t, store.WriteChunk(ctx, chunk))

	n, err := store.ChunkCount(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.FinishRun(ctx, "aisdk.csv", sampleSummary("run-1", started)))

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateDone, run.State)
	assert.Equal(t, 1200, run.Records)
	assert.Equal(t, 3*time.Second, run.Duration)
	assert.True(t, run.Degraded)
	assert.True(t, started.Equal(run.Started))

	counts, err := store.Counts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[ais.KindLocationJump])
	assert.Equal(t, 7, counts[ais.KindSpeed])
	assert.Equal(t, 0, counts[ais.KindCourse])
	assert.Len(t, counts, 4)

	stages, err := store.Stages(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, pipeline.StageA, stages[0].Name)
	assert.Equal(t, 1, stages[0].Degraded)
	assert.Equal(t, 2, stages[1].ItemFailures)
}

func TestFinishRunWithoutBegin(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.FinishRun(ctx, "", sampleSummary("run-2", time.Now())))
	require.NoError(t, store.FinishRun(ctx, "", sampleSummary("run-2", time.Now())), "finishing twice overwrites")

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRunsNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.BeginRun(ctx, id, "", base.Add(time.Duration(i)*time.Hour)))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetRunNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestWriteChunkRequiresRun(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.WriteChunk(context.Background(), &pipeline.Report{RunID: "ghost", Chunk: 1, State: pipeline.StateDone})
	assert.Error(t, err, "foreign key on run_chunks.run_id")
}

func TestBeginRunDuplicate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BeginRun(ctx, "dup", "", time.Now()))
	assert.Error(t, store.BeginRun(ctx, "dup", "", time.Now()))
}

func TestListRunsClosedDatabase(t *testing.T) {
	store, db := newTestStore(t)
	db.Close()

	_, err := store.ListRuns(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, IsDatabaseClosed(err))
}

func TestFinishRunRollsBackOnError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	store := NewRunStore(mockDB, zap.NewNop().Sugar())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT OR REPLACE INTO run_counts").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = store.FinishRun(context.Background(), "in.csv", sampleSummary("run-3", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location_jump count of run run-3")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunBeginFails(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	err = NewRunStore(mockDB, nil).FinishRun(context.Background(), "", sampleSummary("run-4", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunCommitFails(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	for range ais.Kinds() {
		mock.ExpectExec("INSERT OR REPLACE INTO run_counts").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	for range 3 {
		mock.ExpectExec("INSERT OR REPLACE INTO run_stages").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit().WillReturnError(errors.New("constraint failed"))

	err = NewRunStore(mockDB, nil).FinishRun(context.Background(), "", sampleSummary("run-5", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
}
