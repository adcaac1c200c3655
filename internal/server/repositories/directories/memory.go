package directories

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
	mu   sync.RWMutex
	dirs map[string]*models.Directory
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{dirs: make(map[string]*models.Directory)}
}

func clone(d *models.Directory) *models.Directory {
	c := *d
	c.Owners = slices.Clone(d.Owners)
	return &c
}

func (r *MemoryRepository) taken(path, parentID, exceptID string) bool {
	for _, d := range r.dirs {
		if d.ID != exceptID && d.Path == path && d.ParentID == parentID {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, d *models.Directory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dirs[d.ID]; ok || r.taken(d.Path, d.ParentID, "") {
		return common.Conflict("directory %q already exists", d.Path)
	}
	r.dirs[d.ID] = clone(d)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Directory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dirs[id]
	if !ok {
		return nil, common.NotFound("directory %s not found", id)
	}
	return clone(d), nil
}

func (r *MemoryRepository) FindByPathAndParent(ctx context.Context, path, parentID string) (*models.Directory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.dirs {
		if d.Path == path && d.ParentID == parentID {
			return clone(d), nil
		}
	}
	return nil, common.NotFound("directory %q not found", path)
}

func (r *MemoryRepository) FindChildren(ctx context.Context, parentID string) ([]*models.Directory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Directory
	for _, d := range r.dirs {
		if d.ParentID == parentID {
			result = append(result, clone(d))
		}
	}
	slices.SortFunc(result, func(a, b *models.Directory) int { return strings.Compare(a.Path, b.Path) })
	return result, nil
}

func (r *MemoryRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, d := range r.dirs {
		if d.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Update(ctx context.Context, d *models.Directory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dirs[d.ID]; !ok {
		return common.NotFound("directory %s not found", d.ID)
	}
	if r.taken(d.Path, d.ParentID, d.ID) {
		return common.Conflict("directory %q already exists", d.Path)
	}
	r.dirs[d.ID] = clone(d)
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dirs[id]; !ok {
		return common.NotFound("directory %s not found", id)
	}
	delete(r.dirs, id)
	return nil
}
