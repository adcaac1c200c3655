package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/categories"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type CategoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewCategoryService(db *sql.DB, repomanager repomanager.RepositoryManager, logger logging.Logger) *CategoryService {
	return &CategoryService{
		db:          db,
		repomanager: repomanager,
		logger:      logger.With("module", "categories"),
	}
}

func (s *CategoryService) Create(ctx context.Context, p models.Principal, typ string) (*models.Category, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return nil, common.Invalid("empty category type")
	}

	c := &models.Category{ID: uuid.NewString(), Type: typ}
	if err := s.repomanager.Categories(s.db).Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "category created", "user", p.Name, "type", c.Type)
	return c, nil
}

func (s *CategoryService) List(ctx context.Context) ([]*models.Category, error) {
	return s.repomanager.Categories(s.db).List(ctx)
}

func (s *CategoryService) FindByType(ctx context.Context, typ string) (*models.Category, error) {
	return s.repomanager.Categories(s.db).FindByType(ctx, strings.TrimSpace(typ))
}

// knownCategory rejects a category id that does not name a stored category.
func knownCategory(ctx context.Context, repo categories.Repository, id string) error {
	_, err := repo.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return common.Invalid("unknown category %s", id)
	}
	return err
}
