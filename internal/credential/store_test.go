package credential

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptedFileBackendRoundTrip(t *testing.T) {
	fb, err := NewEncryptedFileBackend(t.TempDir(), "fixed-machine-id")
	require.NoError(t, err)

	store := OpenWithBackend(fb, slog.Default())

	payload := []byte("a restore token, arbitrary bytes \x00\x01\x02")
	require.NoError(t, store.Save("session-a", payload))

	got, err := store.Load("session-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, payload, got.Opaque)
}

func TestEncryptedFileBackendLoadAbsentReturnsNilNil(t *testing.T) {
	fb, err := NewEncryptedFileBackend(t.TempDir(), "fixed-machine-id")
	require.NoError(t, err)
	store := OpenWithBackend(fb, slog.Default())

	got, err := store.Load("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestEncryptedFileBackendDeleteIsIdempotent(t *testing.T) {
	fb, err := NewEncryptedFileBackend(t.TempDir(), "fixed-machine-id")
	require.NoError(t, err)
	store := OpenWithBackend(fb, slog.Default())

	require.NoError(t, store.Save("session-b", []byte("x")))
	require.NoError(t, store.Delete("session-b"))
	require.NoError(t, store.Delete("session-b")) // second delete must not error

	got, err := store.Load("session-b")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestEncryptedFileBackendScopesTokensToMachineID(t *testing.T) {
	dir := t.TempDir()
	fbA, err := NewEncryptedFileBackend(dir, "machine-a")
	require.NoError(t, err)
	require.NoError(t, fbA.Store("session-c", []byte("secret"), Metadata{SessionID: "session-c"}))

	fbB, err := NewEncryptedFileBackend(dir, "machine-b")
	require.NoError(t, err)

	_, err = fbB.Load("session-c")
	require.Error(t, err)
	var decErr *ErrDecryptionFailed
	require.ErrorAs(t, err, &decErr)
}

func TestEncryptedFileBackendRotateForcesNoStoredStateLeak(t *testing.T) {
	fb, err := NewEncryptedFileBackend(t.TempDir(), "fixed-machine-id")
	require.NoError(t, err)
	store := OpenWithBackend(fb, slog.Default())

	require.NoError(t, store.Save("session-d", []byte("v1")))
	require.NoError(t, store.Rotate())
	require.NoError(t, store.Save("session-d", []byte("v2")))

	got, err := store.Load("session-d")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got.Opaque)
}
