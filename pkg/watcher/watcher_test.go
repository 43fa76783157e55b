package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresDir(t *testing.T) {
	_, err := NewWithConfig(Config{})
	assert.Error(t, err)
}

func TestNewMissingDir(t *testing.T) {
	_, err := NewWithConfig(Config{Dir: "/nonexistent/watch/dir"})
	assert.Error(t, err)
}

func TestWatchEmitsAfterDebounce(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWithConfig(Config{Dir: dir, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	paths := w.Watch(ctx)

	target := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(target, []byte("# Hi"), 0o644))

	select {
	case got := <-paths:
		assert.Equal(t, target, got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for watch event")
	}
}

func TestWatchIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWithConfig(Config{Dir: dir, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths := w.Watch(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("x"), 0o644))

	select {
	case got := <-paths:
		t.Fatalf("unexpected event for %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWithConfig(Config{Dir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	paths := w.Watch(ctx)
	cancel()

	select {
	case _, ok := <-paths:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
