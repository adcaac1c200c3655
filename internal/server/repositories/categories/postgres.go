package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/dbx"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, type) VALUES ($1, $2)`, c.ID, c.Type)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Conflict("category %q already exists", c.Type)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.NotFound("category %s not found", id)
	}
	return r.getOne(ctx, `SELECT id, type FROM categories WHERE id=$1`, id)
}

func (r *PostgresRepository) FindByType(ctx context.Context, typ string) (*models.Category, error) {
	return r.getOne(ctx, `SELECT id, type FROM categories WHERE type=$1`, typ)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (*models.Category, error) {
	var c models.Category
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("category %s not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select category: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, type FROM categories ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Type); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
