// Package categories persists file categories.
package categories

import (
	"context"

	"github.com/dmitrijs2005/doctree/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	FindByType(ctx context.Context, typ string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
}
