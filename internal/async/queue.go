// Package async runs receipt files through the pipeline on a fixed pool of workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/receipt-itemizer/internal/pipeline"
)

// Job is one receipt image on disk.
type Job struct {
	Path        string
	SubmittedAt time.Time
	RequestID   string
}

// Result is reported once per job, in completion order.
type Result struct {
	Job      Job
	WorkerID int
	Outcome  *pipeline.Outcome
	Err      error
	Elapsed  time.Duration
}

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
