package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewLocal(dir, "articles")
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "abc123.html", "text/html", []byte("<html></html>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "articles", "abc123.html"))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(data))
}

func TestLocalPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../../etc/passwd", "", []byte("x"))
	require.Error(t, err)
}

func TestNewLocalCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := NewLocal(dir, "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestMemoryPutObjectRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	uri, err := store.PutObject(context.Background(), "a.html", "text/html", []byte("body"))
	require.NoError(t, err)
	require.Equal(t, "mem://a.html", uri)

	data, ok := store.Object("a.html")
	require.True(t, ok)
	require.Equal(t, "body", string(data))
}
