package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRunsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "schema.prisma")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	var runs atomic.Int32
	w, err := NewWatcher(file, func() error {
		runs.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	w.Start()
	t.Cleanup(func() { w.Stop() })

	assert.Equal(t, int32(1), runs.Load(), "the callback runs once at start")

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load(), "unrelated files do not trigger the callback")
}

func TestWatcherReportsErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schema.prisma")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	errs := make(chan error, 1)
	w, err := NewWatcher(file, func() error { return os.ErrInvalid }, func(err error) { errs <- err })
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, os.ErrInvalid)
	case <-time.After(time.Second):
		t.Fatal("initial callback error was not reported")
	}
}
