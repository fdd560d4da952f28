// Package uploads stages uploaded receipt images on disk for the duration
// of one pipeline run.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// Resource is an input the pipeline reads once and must release exactly once.
type Resource interface {
	Name() string
	Bytes() ([]byte, error)
	Release() error
}

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// TempFile is an upload written to <dir>/<uuid>-<name>. Release removes it;
// later calls are no-ops that return the first result.
type TempFile struct {
	path   string
	name   string
	logger *slog.Logger

	once       sync.Once
	releaseErr error
}

// Materialize copies r into a new file under dir. maxBytes <= 0 means no limit.
func Materialize(dir, filename string, r io.Reader, maxBytes int64, logger *slog.Logger) (*TempFile, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	name := sanitizeName(filename)
	path := filepath.Join(dir, uuid.NewString()+"-"+name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tf := &TempFile{path: path, name: name, logger: logger}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = common.NewInputValidationError(fmt.Sprintf("file larger than %d bytes", maxBytes), ErrTooLarge)
	}
	if err != nil {
		if rerr := tf.Release(); rerr != nil {
			logger.Warn("upload.cleanup.failed", "path", path, "error", rerr)
		}
		return nil, err
	}
	logger.Debug("upload.materialized", "path", path, "bytes", n)
	return tf, nil
}

func (t *TempFile) Name() string { return t.name }
func (t *TempFile) Path() string { return t.path }

func (t *TempFile) Bytes() ([]byte, error) {
	return os.ReadFile(t.path)
}

// Release removes the file. A file that is already gone is not an error.
func (t *TempFile) Release() error {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.releaseErr = common.NewCleanupError("remove temp upload "+t.path, err)
			return
		}
		t.logger.Debug("upload.released", "path", t.path)
	})
	return t.releaseErr
}

// sanitizeName keeps the base name and replaces characters that are unsafe
// in file names.
func sanitizeName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == '_' || r == '.':
			return r
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, base)
}
