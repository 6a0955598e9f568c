package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modularcms/content-core/pkg/contentcore/blob"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return backend
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestUploadAndDownload(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	err := backend.Upload(ctx, strings.NewReader("payload"), blob.UploadParams{
		ObjectKey: "folder/file.txt",
		MimeType:  "text/plain",
	})
	require.NoError(t, err)

	reader, err := backend.Download(ctx, "folder/file.txt")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDownloadMissing(t *testing.T) {
	backend := newTestBackend(t)

	_, err := backend.Download(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestGetObjectMeta(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("hello meta"), blob.UploadParams{ObjectKey: "m.txt"}))

	meta, err := backend.GetObjectMeta(ctx, "m.txt")
	require.NoError(t, err)
	assert.Equal(t, "m.txt", meta.Key)
	assert.Equal(t, int64(len("hello meta")), meta.Size)
	assert.False(t, meta.UpdatedAt.IsZero())

	_, err = backend.GetObjectMeta(ctx, "missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestDeleteCleansUpEmptyDirectories(t *testing.T) {
	baseDir := t.TempDir()
	backend, err := New(Config{BaseDir: baseDir})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("x"), blob.UploadParams{ObjectKey: "a/b/c.txt"}))
	require.NoError(t, backend.Delete(ctx, "a/b/c.txt"))

	_, err = os.Stat(filepath.Join(baseDir, "a"))
	assert.True(t, os.IsNotExist(err), "empty directories must be removed")

	assert.ErrorIs(t, backend.Delete(ctx, "a/b/c.txt"), blob.ErrNotFound)
}

func TestSourceURI(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("x"), blob.UploadParams{ObjectKey: "u.txt"}))

	uri, err := backend.SourceURI(ctx, "u.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.True(t, strings.HasSuffix(uri, "/u.txt"))

	_, err = backend.SourceURI(ctx, "missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
