package files

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	require.NoError(t, r.Create(ctx, &models.FileRecord{ID: "f1", Filename: "a.txt", DirectoryID: "d", StoredID: "s1"}))

	err := r.Create(ctx, &models.FileRecord{ID: "f2", Filename: "a.txt", DirectoryID: "d", StoredID: "s2"})
	assert.True(t, errors.Is(err, common.ErrorConflict), "same name in same directory")

	err = r.Create(ctx, &models.FileRecord{ID: "f3", Filename: "b.txt", DirectoryID: "d", StoredID: "s1"})
	assert.True(t, errors.Is(err, common.ErrorConflict), "stored id reused")

	require.NoError(t, r.Create(ctx, &models.FileRecord{ID: "f4", Filename: "a.txt", DirectoryID: "other", StoredID: "s4"}))
	assert.Equal(t, 2, r.Len())
}

func TestMemoryRepository_Queries(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	for _, f := range []*models.FileRecord{
		{ID: "1", Filename: "Report-Q1.pdf", DirectoryID: "d", CategoryID: "inv", StoredID: "s1"},
		{ID: "2", Filename: "notes.txt", DirectoryID: "d", StoredID: "s2"},
		{ID: "3", Filename: "report-q2.pdf", DirectoryID: "e", CategoryID: "inv", StoredID: "s3"},
	} {
		require.NoError(t, r.Create(ctx, f))
	}

	inDir, err := r.FindByDirectory(ctx, "d")
	require.NoError(t, err)
	require.Len(t, inDir, 2)
	assert.Equal(t, "Report-Q1.pdf", inDir[0].Filename)

	byCat, err := r.FindByDirectoryAndCategory(ctx, "d", "inv")
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "1", byCat[0].ID)

	found, err := r.SearchByName(ctx, "REPORT")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	n, err := r.CountByDirectory(ctx, "e")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := r.GetByStoredID(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "2", f.ID)

	_, err = r.FindByDirectoryAndName(ctx, "d", "nope")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
	_, err = r.GetByStoredID(ctx, "nope")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestMemoryRepository_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	require.NoError(t, r.Create(ctx, &models.FileRecord{ID: "1", Filename: "a", DirectoryID: "d", StoredID: "s1"}))
	require.NoError(t, r.Create(ctx, &models.FileRecord{ID: "2", Filename: "b", DirectoryID: "d", StoredID: "s2"}))

	f, err := r.GetByID(ctx, "1")
	require.NoError(t, err)
	f.StoredID = "s1b"
	require.NoError(t, r.Update(ctx, f))

	f.Filename = "b"
	assert.True(t, errors.Is(r.Update(ctx, f), common.ErrorConflict))

	assert.True(t, errors.Is(r.Update(ctx, &models.FileRecord{ID: "x"}), common.ErrorNotFound))

	require.NoError(t, r.Delete(ctx, "1"))
	assert.True(t, errors.Is(r.Delete(ctx, "1"), common.ErrorNotFound))
	_, err = r.GetByID(ctx, "1")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}
