package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beryl/internal/model"
	"github.com/sells-group/beryl/internal/store"
)

type fakeLister struct {
	runs    []model.Run
	listErr error
	filter  store.RunFilter
}

func (f *fakeLister) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.filter = filter
	return f.runs, f.listErr
}

func score(v float64) *float64 { return &v }

func fixedCollector(st RunLister, now time.Time) *Collector {
	c := NewCollector(st)
	c.now = func() time.Time { return now }
	return c
}

func TestCollector_EmptyStore(t *testing.T) {
	st := &fakeLister{}
	c := NewCollector(st)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Total)
	assert.Equal(t, 0.0, snap.FailRate)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
	assert.Equal(t, maxScan, st.filter.Limit)
}

func TestCollector_RunMetrics(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := &fakeLister{runs: []model.Run{
		{ID: "1", Status: model.RunStatusComplete, CreatedAt: now.Add(-1 * time.Hour), UpdatedAt: now.Add(-1*time.Hour + 40*time.Second),
			Result: &model.RunResult{Products: []model.EntityAnalysis{{Name: "A", OverallScore: score(9)}, {Name: "B", OverallScore: score(7)}}}},
		{ID: "2", Status: model.RunStatusComplete, CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-2*time.Hour + 20*time.Second),
			Result: &model.RunResult{Products: []model.EntityAnalysis{{Name: "C", OverallScore: score(7)}}}},
		{ID: "3", Status: model.RunStatusAborted, CreatedAt: now.Add(-3 * time.Hour), Result: &model.RunResult{}},
		{ID: "4", Status: model.RunStatusFailed, CreatedAt: now.Add(-4 * time.Hour)},
		{ID: "5", Status: model.RunStatusAnalyzing, CreatedAt: now.Add(-10 * time.Minute)},
		// Outside the lookback window.
		{ID: "6", Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour)},
	}}

	snap, err := fixedCollector(st, now).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Aborted)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 0.25, snap.FailRate, 0.001) // 1 failed / 4 finished
	assert.InDelta(t, 1.5, snap.AvgProducts, 0.001)
	assert.InDelta(t, 8.0, snap.AvgTopScore, 0.001)
	assert.InDelta(t, 30.0, snap.AvgDurationSec, 0.001)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollector_NoLookback(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := &fakeLister{runs: []model.Run{
		{ID: "1", Status: model.RunStatusFailed, CreatedAt: now.Add(-400 * time.Hour)},
		{ID: "2", Status: model.RunStatusFailed, CreatedAt: now.Add(-1 * time.Hour)},
	}}

	snap, err := fixedCollector(st, now).Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1.0, snap.FailRate)
}

func TestCollector_FailureRateZeroFinished(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeLister{runs: []model.Run{
		{ID: "1", Status: model.RunStatusQueued, CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "2", Status: model.RunStatusIndexing, CreatedAt: now.Add(-2 * time.Hour)},
	}}

	snap, err := fixedCollector(st, now).Collect(context.Background(), 24)
	require.NoError(t, err)

	// No finished runs, so failure rate should be 0.
	assert.Equal(t, 0.0, snap.FailRate)
	assert.Equal(t, 2, snap.Running)
}

func TestCollector_ListError(t *testing.T) {
	st := &fakeLister{listErr: errors.New("db down")}
	_, err := NewCollector(st).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
