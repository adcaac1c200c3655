package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/server/blobstore"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) archive(maxDepth int) *ArchiveBuilder {
	return NewArchiveBuilder(nil, e.repos, e.blobs, maxDepth, 5, nopLogger{})
}

func buildArchive(t *testing.T, b *ArchiveBuilder, rootID, categoryID string, p models.Principal) (map[string]string, []string) {
	t.Helper()
	var buf bytes.Buffer
	stats, err := b.Build(context.Background(), rootID, categoryID, p, &buf)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	contents := make(map[string]string)
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(data)
		names = append(names, f.Name)
	}
	assert.Equal(t, len(names), stats.Entries)
	return contents, names
}

func TestArchiveBuilder_SkipsUnreadableFiles(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "docs", "", true)
	env.put(t, dir, "a.txt", "A", true)
	env.put(t, dir, "b.txt", "B", false, private("alice", models.Read|models.Write))
	env.put(t, dir, "c.txt", "C", true)

	_, names := buildArchive(t, env.archive(0), dir.ID, "", bob)
	assert.Equal(t, []string{"docs/a.txt", "docs/c.txt"}, names)

	contents, names := buildArchive(t, env.archive(0), dir.ID, "", admin)
	assert.Equal(t, []string{"docs/a.txt", "docs/b.txt", "docs/c.txt"}, names)
	assert.Equal(t, "B", contents["docs/b.txt"])
}

func TestArchiveBuilder_RootDocsScenario(t *testing.T) {
	env := newTestEnv(t)
	root := env.mkdir(t, "root", "", true)
	docs := env.mkdir(t, "docs", root.ID, true)
	env.put(t, docs, "a.txt", "public", true)
	env.put(t, docs, "b.txt", "private", false, private("alice", models.Read|models.Write))

	_, names := buildArchive(t, env.archive(0), docs.ID, "", bob)
	assert.Equal(t, []string{"docs/a.txt"}, names)

	_, names = buildArchive(t, env.archive(0), docs.ID, "", alice)
	assert.Equal(t, []string{"docs/a.txt", "docs/b.txt"}, names)
}

func TestArchiveBuilder_PrunesUnreadableMiddleLevel(t *testing.T) {
	env := newTestEnv(t)
	top := env.mkdir(t, "top", "", true)
	mid := env.mkdir(t, "mid", top.ID, false)
	leaf := env.mkdir(t, "leaf", mid.ID, true)
	env.put(t, top, "t.txt", "t", true)
	env.put(t, mid, "m.txt", "m", true)
	env.put(t, leaf, "l.txt", "l", true)

	_, names := buildArchive(t, env.archive(0), top.ID, "", bob)
	assert.Equal(t, []string{"top/t.txt"}, names)

	_, names = buildArchive(t, env.archive(0), top.ID, "", admin)
	assert.Equal(t, []string{"top/mid/leaf/l.txt", "top/mid/m.txt", "top/t.txt"}, names)
}

func TestArchiveBuilder_ChildrenBeforeOwnFiles(t *testing.T) {
	env := newTestEnv(t)
	top := env.mkdir(t, "top", "", true)
	b := env.mkdir(t, "b", top.ID, true)
	a := env.mkdir(t, "a", top.ID, true)
	env.put(t, top, "z.txt", "z", true)
	env.put(t, a, "1.txt", "1", true)
	env.put(t, b, "2.txt", "2", true)
	env.put(t, b, "3.txt", "3", true)

	_, names := buildArchive(t, env.archive(0), top.ID, "", bob)
	assert.Equal(t, []string{"top/a/1.txt", "top/b/2.txt", "top/b/3.txt", "top/z.txt"}, names)
}

func TestArchiveBuilder_CategoryFilter(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "docs", "", true)
	cat := &models.Category{ID: "11111111-1111-1111-1111-111111111111", Type: "invoice"}
	require.NoError(t, env.repos.Categories(nil).Create(context.Background(), cat))

	rec, err := env.files.Store(context.Background(), &models.FileRecord{
		Filename: "inv.pdf", DirectoryID: dir.ID, CategoryID: cat.ID, OpenVisible: true,
	}, stringsReader("%PDF"))
	require.NoError(t, err)
	env.put(t, dir, "other.txt", "o", true)

	_, names := buildArchive(t, env.archive(0), dir.ID, cat.ID, bob)
	assert.Equal(t, []string{"docs/" + rec.Filename}, names)
}

func TestArchiveBuilder_Errors(t *testing.T) {
	env := newTestEnv(t)
	top := env.mkdir(t, "top", "", true)
	mid := env.mkdir(t, "mid", top.ID, true)
	env.mkdir(t, "leaf", mid.ID, true)

	var buf bytes.Buffer

	_, err := env.archive(0).Build(context.Background(), "missing", "", admin, &buf)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = env.archive(1).Build(context.Background(), top.ID, "", admin, &buf)
	assert.ErrorIs(t, err, common.ErrorInvalid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = env.archive(0).Build(ctx, top.ID, "", admin, &buf)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, buf.Len())
}

func TestArchiveBuilder_UnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "docs", "", true)
	env.put(t, dir, "a.txt", "a", true)

	for _, id := range []string{"foo", "22222222-2222-2222-2222-222222222222"} {
		var buf bytes.Buffer
		_, err := env.archive(0).Build(context.Background(), dir.ID, id, admin, &buf)
		assert.ErrorIs(t, err, common.ErrorInvalid, id)
		assert.Zero(t, buf.Len(), id)
	}
}

// truncatingStore serves the first limit bytes of every blob, then fails.
type truncatingStore struct {
	*blobstore.MemoryStore
	limit int64
}

type truncatingReader struct {
	io.ReadCloser
	left int64
}

func (r *truncatingReader) Read(p []byte) (int, error) {
	if r.left <= 0 {
		return 0, common.StoreFailure(errors.New("i/o failure"), "read blob")
	}
	if int64(len(p)) > r.left {
		p = p[:r.left]
	}
	n, err := r.ReadCloser.Read(p)
	r.left -= int64(n)
	return n, err
}

func (s *truncatingStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := s.MemoryStore.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return &truncatingReader{ReadCloser: rc, left: s.limit}, nil
}

func TestArchiveBuilder_BlobFailureLeavesNoReadableArchive(t *testing.T) {
	var lines strings.Builder
	for i := 0; i < 200000; i++ {
		fmt.Fprintf(&lines, "%08d\n", i)
	}

	tests := []struct {
		name     string
		content  string
		limit    int64
		streamed bool
	}{
		{name: "fails inside the first buffer", content: strings.Repeat("x", 100), limit: 4},
		{name: "fails after output was flushed", content: lines.String(), limit: int64(lines.Len() / 2), streamed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			dir := env.mkdir(t, "docs", "", true)
			env.put(t, dir, "big.txt", tt.content, true)

			store := &truncatingStore{MemoryStore: env.blobs, limit: tt.limit}
			b := NewArchiveBuilder(nil, env.repos, store, 0, 5, nopLogger{})

			var buf bytes.Buffer
			_, err := b.Build(context.Background(), dir.ID, "", admin, &buf)
			require.ErrorIs(t, err, common.ErrorStoreFailure)

			if tt.streamed {
				assert.NotZero(t, buf.Len())
			} else {
				assert.Zero(t, buf.Len())
			}
			_, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			assert.Error(t, err)
		})
	}
}

type cancellingStore struct {
	*blobstore.MemoryStore
	cancel context.CancelFunc
	closed int
}

type trackedReader struct {
	io.Reader
	store *cancellingStore
}

func (r *trackedReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p[:1])
	r.store.cancel()
	return n, err
}

func (r *trackedReader) Close() error {
	r.store.closed++
	return nil
}

func (s *cancellingStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := s.MemoryStore.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return &trackedReader{Reader: rc, store: s}, nil
}

func TestArchiveBuilder_CancelledMidStream(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "docs", "", true)
	env.put(t, dir, "a.txt", "a long enough body", true)
	env.put(t, dir, "b.txt", "never read", true)

	ctx, cancel := context.WithCancel(context.Background())
	store := &cancellingStore{MemoryStore: env.blobs, cancel: cancel}
	b := NewArchiveBuilder(nil, env.repos, store, 0, 5, nopLogger{})

	var buf bytes.Buffer
	stats, err := b.Build(ctx, dir.ID, "", bob, &buf)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, 1, store.closed)
}

func TestArchiveBuilder_SkipsMissingBlob(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "docs", "", true)
	gone := env.put(t, dir, "a.txt", "a", true)
	env.put(t, dir, "b.txt", "b", true)
	require.NoError(t, env.blobs.Delete(context.Background(), gone.StoredID))

	_, names := buildArchive(t, env.archive(0), dir.ID, "", bob)
	assert.Equal(t, []string{"docs/b.txt"}, names)
}
