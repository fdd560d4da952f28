package uploads

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

func TestMaterializeAndRelease(t *testing.T) {
	dir := t.TempDir()
	tf, err := Materialize(dir, "../../receipt 1.png", strings.NewReader("pixels"), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(tf.Path()))
	assert.True(t, strings.HasSuffix(tf.Path(), "-receipt_1.png"))
	assert.Equal(t, "receipt_1.png", tf.Name())

	b, err := tf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), b)

	require.NoError(t, tf.Release())
	_, err = os.Stat(tf.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoError(t, tf.Release())
}

func TestMaterializeRejectsOversize(t *testing.T) {
	dir := t.TempDir()
	_, err := Materialize(dir, "big.jpg", bytes.NewReader(make([]byte, 11)), 10, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInputValidation))
	assert.True(t, errors.Is(err, ErrTooLarge))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReleaseFailureIsCleanupError(t *testing.T) {
	dir := t.TempDir()
	tf, err := Materialize(dir, "a.png", strings.NewReader("x"), 0, nil)
	require.NoError(t, err)

	// a non-empty directory at the path cannot be removed with os.Remove
	require.NoError(t, os.Remove(tf.Path()))
	require.NoError(t, os.MkdirAll(filepath.Join(tf.Path(), "child"), 0o755))

	err = tf.Release()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCleanup))
	assert.Equal(t, err, tf.Release())
}
