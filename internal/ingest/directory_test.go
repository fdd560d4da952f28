package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-itemizer/internal/async"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func tree(t *testing.T) string {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.JPG"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "b.png"))
	touch(t, filepath.Join(root, "sub", ".c.webp"))
	touch(t, filepath.Join(root, ".cache", "d.png"))
	return root
}

func TestScanImages(t *testing.T) {
	root := tree(t)

	paths, stats, err := ScanImages(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.JPG"), filepath.Join(root, "sub", "b.png")}, paths)
	assert.EqualValues(t, 2, stats.Matched)

	all, _, err := ScanImages(context.Background(), root, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, _, err = ScanImages(context.Background(), " ", false)
	assert.Error(t, err)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func TestIngestDirectory(t *testing.T) {
	q := &recordingQueue{}
	stats, err := IngestDirectory(context.Background(), q, tree(t), true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Enqueued)
	require.Len(t, q.jobs, 2)
	assert.Equal(t, "a.JPG", filepath.Base(q.jobs[0].Path))
}
