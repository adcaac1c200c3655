package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/doctree/internal/dbx"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/categories"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/directories"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/files"
)

// RepositoryManager vends repositories bound to a DBTX, so that services can
// use the same code against *sql.DB and inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Directories(db dbx.DBTX) directories.Repository
	Files(db dbx.DBTX) files.Repository
	Categories(db dbx.DBTX) categories.Repository
}
