package async

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/pipeline"
)

type fakeProcessor struct {
	mu   sync.Mutex
	seen map[string]string
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, path string) (*pipeline.Outcome, error) {
	f.mu.Lock()
	f.seen[path] = common.RequestIDFromContext(ctx)
	f.mu.Unlock()
	if path == "bad.png" {
		return &pipeline.Outcome{State: constants.StateFailed}, errors.New("boom")
	}
	return &pipeline.Outcome{State: constants.StateReconciled}, nil
}

func TestProcessorQueueRunsEveryJob(t *testing.T) {
	proc := &fakeProcessor{seen: map[string]string{}}
	var (
		mu      sync.Mutex
		results []Result
	)
	q := NewProcessorQueue(proc, nil,
		WithWorkers(3),
		WithQueueSize(2),
		WithResultHandler(func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)

	ctx := context.Background()
	for i := 0; i < 9; i++ {
		require.NoError(t, q.Enqueue(ctx, Job{Path: fmt.Sprintf("r%d.png", i), RequestID: fmt.Sprintf("req-%d", i)}))
	}
	require.NoError(t, q.Enqueue(ctx, Job{Path: "bad.png"}))

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(sctx)

	require.Len(t, results, 10)
	var failed []string
	for _, r := range results {
		assert.NotZero(t, r.WorkerID)
		assert.False(t, r.Job.SubmittedAt.IsZero())
		if r.Err != nil {
			failed = append(failed, r.Job.Path)
		}
	}
	sort.Strings(failed)
	assert.Equal(t, []string{"bad.png"}, failed)
	assert.Equal(t, "req-4", proc.seen["r4.png"])
}

func TestProcessorQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{seen: map[string]string{}}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.png"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
