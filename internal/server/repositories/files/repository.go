// Package files persists file records: the metadata side of the store,
// mapping (directory, filename) to a blob id.
package files

import (
	"context"

	"github.com/dmitrijs2005/doctree/internal/server/models"
)

// Repository stores file records. Unknown ids return an error matching
// common.ErrorNotFound; a (filename, directory) or stored id collision
// returns one matching common.ErrorConflict. Listings are ordered by filename.
type Repository interface {
	Create(ctx context.Context, f *models.FileRecord) error
	Update(ctx context.Context, f *models.FileRecord) error
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	GetByStoredID(ctx context.Context, storedID string) (*models.FileRecord, error)
	FindByDirectoryAndName(ctx context.Context, directoryID, filename string) (*models.FileRecord, error)
	FindByDirectory(ctx context.Context, directoryID string) ([]*models.FileRecord, error)
	FindByDirectoryAndCategory(ctx context.Context, directoryID, categoryID string) ([]*models.FileRecord, error)
	CountByDirectory(ctx context.Context, directoryID string) (int, error)
	// SearchByName matches filenames containing fragment, ignoring case.
	SearchByName(ctx context.Context, fragment string) ([]*models.FileRecord, error)
	Delete(ctx context.Context, id string) error
}
