package credential

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreWatchNotifiesOnTokenFileRemoval(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewEncryptedFileBackend(dir, "fixed-machine-id")
	require.NoError(t, err)
	store := OpenWithBackend(fb, slog.Default())
	store.tokenDir = dir

	require.NoError(t, store.Save("session-e", []byte("v1")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan string, 4)
	go func() {
		_ = store.Watch(ctx, func(sessionID string) {
			notified <- sessionID
		})
	}()

	// Give the watcher time to register the directory before mutating it.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(filepath.Join(dir, "session-e.bin")))

	select {
	case sessionID := <-notified:
		require.Equal(t, "session-e", sessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for token removal notification")
	}
}

func TestStoreWatchReturnsWhenTokenDirUnset(t *testing.T) {
	store := OpenWithBackend(nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = store.Watch(ctx, nil)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}
