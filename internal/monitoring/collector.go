// Package monitoring summarizes persisted runs for health and usage reports.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beryl/internal/model"
	"github.com/sells-group/beryl/internal/store"
)

// maxScan caps how many recent runs a snapshot reads.
const maxScan = 10000

// MetricsSnapshot holds a point-in-time view of run outcomes.
type MetricsSnapshot struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Aborted  int `json:"aborted"`
	Failed   int `json:"failed"`
	Running  int `json:"running"`

	// FailRate is failed over finished runs. Aborted runs count as finished.
	FailRate float64 `json:"fail_rate"`
	// AvgProducts is the mean ranked product count of complete runs.
	AvgProducts float64 `json:"avg_products"`
	// AvgTopScore is the mean overall score of the top product of complete
	// runs that ranked at least one product.
	AvgTopScore    float64 `json:"avg_top_score"`
	AvgDurationSec float64 `json:"avg_duration_secs"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over runs created in the last lookbackHours.
// Zero or less covers every stored run up to the scan cap.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: maxScan})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var cutoff time.Time
	if lookbackHours > 0 {
		cutoff = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}

	var products, scored int
	var topScore float64
	var totalDur time.Duration

	for _, r := range runs {
		if !cutoff.IsZero() && r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++

		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			if r.Result != nil {
				products += len(r.Result.Products)
				if len(r.Result.Products) > 0 {
					topScore += r.Result.Products[0].Overall()
					scored++
				}
			}
		case model.RunStatusAborted:
			snap.Aborted++
		case model.RunStatusFailed:
			snap.Failed++
		default:
			snap.Running++
		}
	}

	if finished := snap.Complete + snap.Aborted + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Complete > 0 {
		snap.AvgProducts = float64(products) / float64(snap.Complete)
		snap.AvgDurationSec = totalDur.Seconds() / float64(snap.Complete)
	}
	if scored > 0 {
		snap.AvgTopScore = topScore / float64(scored)
	}

	return snap, nil
}
