package files

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/server/models"
)

// MemoryRepository is an in-process Repository with the same uniqueness
// rules as the PostgreSQL schema.
type MemoryRepository struct {
	mu    sync.RWMutex
	files map[string]*models.FileRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{files: make(map[string]*models.FileRecord)}
}

func clone(f *models.FileRecord) *models.FileRecord {
	c := *f
	c.Owners = slices.Clone(f.Owners)
	return &c
}

func (r *MemoryRepository) conflict(f *models.FileRecord) error {
	for _, o := range r.files {
		if o.ID == f.ID {
			continue
		}
		if o.DirectoryID == f.DirectoryID && o.Filename == f.Filename {
			return common.Conflict("file %q already exists", f.Filename)
		}
		if o.StoredID == f.StoredID {
			return common.Conflict("stored object %s already referenced", f.StoredID)
		}
	}
	return nil
}

func (r *MemoryRepository) Create(ctx context.Context, f *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[f.ID]; ok {
		return common.Conflict("file %s already exists", f.ID)
	}
	if err := r.conflict(f); err != nil {
		return err
	}
	r.files[f.ID] = clone(f)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, f *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[f.ID]; !ok {
		return common.NotFound("file %s not found", f.ID)
	}
	if err := r.conflict(f); err != nil {
		return err
	}
	r.files[f.ID] = clone(f)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[id]
	if !ok {
		return nil, common.NotFound("file %s not found", id)
	}
	return clone(f), nil
}

func (r *MemoryRepository) find(match func(*models.FileRecord) bool) []*models.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.FileRecord
	for _, f := range r.files {
		if match(f) {
			result = append(result, clone(f))
		}
	}
	slices.SortFunc(result, func(a, b *models.FileRecord) int { return strings.Compare(a.Filename, b.Filename) })
	return result
}

func (r *MemoryRepository) GetByStoredID(ctx context.Context, storedID string) (*models.FileRecord, error) {
	found := r.find(func(f *models.FileRecord) bool { return f.StoredID == storedID })
	if len(found) == 0 {
		return nil, common.NotFound("stored object %s not found", storedID)
	}
	return found[0], nil
}

func (r *MemoryRepository) FindByDirectoryAndName(ctx context.Context, directoryID, filename string) (*models.FileRecord, error) {
	found := r.find(func(f *models.FileRecord) bool { return f.DirectoryID == directoryID && f.Filename == filename })
	if len(found) == 0 {
		return nil, common.NotFound("file %q not found", filename)
	}
	return found[0], nil
}

func (r *MemoryRepository) FindByDirectory(ctx context.Context, directoryID string) ([]*models.FileRecord, error) {
	return r.find(func(f *models.FileRecord) bool { return f.DirectoryID == directoryID }), nil
}

func (r *MemoryRepository) FindByDirectoryAndCategory(ctx context.Context, directoryID, categoryID string) ([]*models.FileRecord, error) {
	return r.find(func(f *models.FileRecord) bool {
		return f.DirectoryID == directoryID && f.CategoryID == categoryID
	}), nil
}

func (r *MemoryRepository) CountByDirectory(ctx context.Context, directoryID string) (int, error) {
	found, _ := r.FindByDirectory(ctx, directoryID)
	return len(found), nil
}

func (r *MemoryRepository) SearchByName(ctx context.Context, fragment string) ([]*models.FileRecord, error) {
	needle := strings.ToLower(fragment)
	return r.find(func(f *models.FileRecord) bool {
		return strings.Contains(strings.ToLower(f.Filename), needle)
	}), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[id]; !ok {
		return common.NotFound("file %s not found", id)
	}
	delete(r.files, id)
	return nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}
