// Package storage persists refinement run outcomes. Only the final result
// of a completed top-level call is stored; per-iteration refinement
// history never leaves the process.
package storage

import (
	"context"
	"time"

	"github.com/refinehq/refinery/internal/refine"
)

// RunRecord captures the outcome of one completed refinement call.
type RunRecord struct {
	ID           string
	CreatedAt    time.Time
	Request      string
	Result       string
	BestRating   refine.QualityRating
	Iterations   int
	Accepted     bool // terminated on quality, not iteration exhaustion
	Model        string
	InputTokens  int64
	OutputTokens int64
	Duration     time.Duration
}

// Store is the run log interface.
type Store interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	Close() error
}
