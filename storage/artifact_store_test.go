package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreybb/quire/models"
)

func newTestStore(t *testing.T) *LocalArtifactStore {
	t.Helper()
	s := NewLocalArtifactStore(filepath.Join(t.TempDir(), "generated"))
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }
	return s
}

func TestLocalArtifactStore_SaveAndOpen(t *testing.T) {
	s := newTestStore(t)

	name, err := s.Save(context.Background(), "proj-1", models.BookFormatPDF, []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "proj-1-1700000000000.pdf", name)
	assert.Equal(t, "/generated/proj-1-1700000000000.pdf", s.URLFor(name))

	f, err := s.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	entries, err := os.ReadDir(s.BasePath())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestLocalArtifactStore_NeverOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, "proj-1", models.BookFormatEPUB, []byte("one"))
	require.NoError(t, err)
	second, err := s.Save(ctx, "proj-1", models.BookFormatEPUB, []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "proj-1-1700000000001.epub", second)
}

func TestLocalArtifactStore_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"../etc/passwd", "a/b.pdf", `a\b.pdf`, "..", ""} {
		_, err := s.Open(name)
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}

	_, err := s.Save(context.Background(), "../x", models.BookFormatPDF, nil)
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestLocalArtifactStore_RejectsUnknownFormat(t *testing.T) {
	_, err := newTestStore(t).Save(context.Background(), "p", models.BookFormat("mobi"), nil)
	assert.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.pdf":  "application/pdf",
		"a.epub": "application/epub+zip",
		"A.PDF":  "application/pdf",
		"a.bin":  "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentTypeFor(name), name)
	}
}
