// Package directories persists the directory tree.
package directories

import (
	"context"

	"github.com/dmitrijs2005/doctree/internal/server/models"
)

// Repository stores directories. Lookups of unknown ids return an error
// matching common.ErrorNotFound; (path, parent) collisions return one
// matching common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, d *models.Directory) error
	GetByID(ctx context.Context, id string) (*models.Directory, error)
	FindByPathAndParent(ctx context.Context, path, parentID string) (*models.Directory, error)
	// FindChildren returns the direct children ordered by path.
	FindChildren(ctx context.Context, parentID string) ([]*models.Directory, error)
	CountChildren(ctx context.Context, parentID string) (int, error)
	Update(ctx context.Context, d *models.Directory) error
	Delete(ctx context.Context, id string) error
}
