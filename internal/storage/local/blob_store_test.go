// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfrank66/lucas-download/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		tempDir := t.TempDir()
		cfg := local.Config{BaseDir: tempDir}
		store, err := local.New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.Equal(t, tempDir, store.BaseDir())
	})
	t.Run("MissingBaseDir", func(t *testing.T) {
		cfg := local.Config{}
		_, err := local.New(cfg)
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp("", "testfile")
		require.NoError(t, err)
		t.Cleanup(func() {
			removeErr := os.Remove(tempFile.Name())
			if removeErr != nil && !os.IsNotExist(removeErr) {
				t.Fatalf("failed to remove temp file: %v", removeErr)
			}
		})

		cfg := local.Config{BaseDir: tempFile.Name()}
		_, err = local.New(cfg)
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		tempDir := t.TempDir()
		// Change permissions to read-only
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		err := os.Chmod(tempDir, 0o500)
		require.NoError(t, err)

		cfg := local.Config{BaseDir: tempDir}
		_, err = local.New(cfg)
		assert.Error(t, err)

		// Change back to writable so cleanup can happen
		// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
		err = os.Chmod(tempDir, 0o700)
		require.NoError(t, err)
	})
}

func TestPut(t *testing.T) {
	tempDir := t.TempDir()
	cfg := local.Config{BaseDir: tempDir}
	store, err := local.New(cfg)
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		path := filepath.Join("1996", "01_Janeiro", "DCD19960110.PDF")
		data := []byte("%PDF-1.4 test body")
		final, err := store.Put(context.Background(), path, data)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tempDir, path), final)

		// Verify the file was written correctly.
		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.Put(context.Background(), "", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		_, err := store.Put(context.Background(), "1996/empty.PDF", nil)
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.Put(context.Background(), "../outside.PDF", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("NoTempLeftBehind", func(t *testing.T) {
		path := filepath.Join("2001", "05_Maio", "DCD20010502.PDF")
		_, err := store.Put(context.Background(), path, []byte("body"))
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(tempDir, "2001", "05_Maio"))
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file %s left behind", e.Name())
		}
	})
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "ledger.json")

	require.NoError(t, local.WriteFileAtomic(path, []byte(`{"v":1}`)))
	require.NoError(t, local.WriteFileAtomic(path, []byte(`{"v":2}`)))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
}
