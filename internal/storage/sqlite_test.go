package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refinehq/refinery/internal/refine"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &RunRecord{
		Request:      "write a haiku",
		Result:       "final haiku text",
		BestRating:   refine.Excellent,
		Iterations:   2,
		Accepted:     true,
		Model:        "claude-3-5-haiku-20241022",
		InputTokens:  1200,
		OutputTokens: 340,
		Duration:     4200 * time.Millisecond,
	}
	require.NoError(t, store.SaveRun(ctx, run))
	assert.NotEmpty(t, run.ID, "missing ID should be assigned on save")
	assert.False(t, run.CreatedAt.IsZero(), "missing timestamp should be assigned on save")

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.Request, got.Request)
	assert.Equal(t, run.Result, got.Result)
	assert.Equal(t, refine.Excellent, got.BestRating)
	assert.Equal(t, 2, got.Iterations)
	assert.True(t, got.Accepted)
	assert.Equal(t, int64(1200), got.InputTokens)
	assert.Equal(t, int64(340), got.OutputTokens)
	assert.Equal(t, 4200*time.Millisecond, got.Duration)
}

func TestSaveRunNil(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.SaveRun(context.Background(), nil))
}

func TestGetRunMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRunsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := &RunRecord{
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			Request:    "request",
			Result:     "result",
			BestRating: refine.Good,
			Iterations: 1,
			Accepted:   true,
		}
		require.NoError(t, store.SaveRun(ctx, run))
	}

	runs, err := store.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i := 1; i < len(runs); i++ {
		assert.True(t, runs[i].CreatedAt.Before(runs[i-1].CreatedAt),
			"runs should be newest first")
	}

	// Zero limit falls back to the default page size.
	runs, err = store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestListRunsEmpty(t *testing.T) {
	runs, err := newTestStore(t).ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRatingRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, rating := range []refine.QualityRating{refine.Poor, refine.Fair, refine.Good, refine.Excellent} {
		run := &RunRecord{
			Request:    "request",
			Result:     "result",
			BestRating: rating,
			Iterations: 1,
		}
		require.NoError(t, store.SaveRun(ctx, run))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rating, got.BestRating)
	}
}
