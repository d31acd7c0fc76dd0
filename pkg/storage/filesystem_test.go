package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveStreamAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("enrollments/e-1/doc.pdf", strings.NewReader("%PDF-1.4"), 1024)
	require.NoError(t, err)
	require.Equal(t, int64(8), n)
	require.True(t, store.Exists("enrollments/e-1/doc.pdf"))

	f, err := store.Open("enrollments/e-1/doc.pdf")
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(body))
}

func TestLocalStorageSaveStreamEnforcesLimit(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.pdf", bytes.NewReader(make([]byte, 11)), 10)
	require.ErrorIs(t, err, ErrTooLarge)
	require.False(t, store.Exists("big.pdf"))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.txt", []byte("x"))
	require.ErrorIs(t, err, ErrOutsideRoot)
	require.NoError(t, store.Delete("missing.pdf"))
}
