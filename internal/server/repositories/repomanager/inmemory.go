package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/doctree/internal/dbx"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/categories"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/directories"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/files"
)

// InMemoryRepositoryManager hands out the same in-memory repositories for
// every DBTX. Transactions are not isolated.
type InMemoryRepositoryManager struct {
	dirs  *directories.MemoryRepository
	files *files.MemoryRepository
	cats  *categories.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		dirs:  directories.NewMemoryRepository(),
		files: files.NewMemoryRepository(),
		cats:  categories.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *InMemoryRepositoryManager) Directories(dbx.DBTX) directories.Repository { return m.dirs }

func (m *InMemoryRepositoryManager) Files(dbx.DBTX) files.Repository { return m.files }

func (m *InMemoryRepositoryManager) Categories(dbx.DBTX) categories.Repository { return m.cats }

// FileRecords exposes the concrete file repository for inspection.
func (m *InMemoryRepositoryManager) FileRecords() *files.MemoryRepository { return m.files }
