// Package store persists finished runs, their stage records and the
// citations backing each score.
package store

import (
	"context"

	"github.com/sells-group/beryl/internal/model"
)

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	// Query matches runs whose query contains this text, ignoring case.
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines run bookkeeping.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, query, category string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// UpdateRunResult stores the ranked result and its citations and marks
	// the run complete.
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Citations
	ListCitations(ctx context.Context, runID string) ([]model.Citation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

var citationColumns = []string{
	"run_id", "position", "entity", "dimension", "quote", "source_name", "source_type", "url", "timestamp",
}

func citationRows(runID string, result *model.RunResult) [][]any {
	cites := result.Citations()
	rows := make([][]any, len(cites))
	for i, c := range cites {
		var ts any
		if c.Timestamp != nil {
			ts = *c.Timestamp
		}
		rows[i] = []any{runID, i, c.Entity, c.Dimension, c.Quote, c.SourceName, string(c.SourceType), c.URL, ts}
	}
	return rows
}
