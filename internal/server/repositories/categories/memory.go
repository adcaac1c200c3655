package categories

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]models.Category
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]models.Category)}
}

func (r *MemoryRepository) Create(ctx context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.byID {
		if o.ID == c.ID || o.Type == c.Type {
			return common.Conflict("category %q already exists", c.Type)
		}
	}
	r.byID[c.ID] = *c
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, common.NotFound("category %s not found", id)
	}
	return &c, nil
}

func (r *MemoryRepository) FindByType(ctx context.Context, typ string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byID {
		if c.Type == typ {
			return &c, nil
		}
	}
	return nil, common.NotFound("category %s not found", typ)
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Category, 0, len(r.byID))
	for _, c := range r.byID {
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *models.Category) int { return strings.Compare(a.Type, b.Type) })
	return result, nil
}
