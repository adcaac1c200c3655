package directories

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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `SELECT id, path, parent_id, owners, public_visible FROM directories`

func (r *PostgresRepository) Create(ctx context.Context, d *models.Directory) error {
	query := `INSERT INTO directories (id, path, parent_id, owners, public_visible)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, d.ID, d.Path, d.ParentID, d.Owners, d.PublicVisible)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Conflict("directory %q already exists", d.Path)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Directory, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.NotFound("directory %s not found", id)
	}
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id=$1`, id)
	d, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("directory %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select directory: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) FindByPathAndParent(ctx context.Context, path, parentID string) (*models.Directory, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE path=$1 AND parent_id=$2`, path, parentID)
	d, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("directory %q not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select directory: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) FindChildren(ctx context.Context, parentID string) ([]*models.Directory, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE parent_id=$1 ORDER BY path`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select directories: %w", err)
	}
	defer rows.Close()

	var result []*models.Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM directories WHERE parent_id=$1`, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count directories: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *models.Directory) error {
	query := `UPDATE directories SET path=$2, parent_id=$3, owners=$4, public_visible=$5 WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, d.ID, d.Path, d.ParentID, d.Owners, d.PublicVisible)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Conflict("directory %q already exists", d.Path)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, d.ID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM directories WHERE id=$1`, id)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrDirectoryNotEmpty
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.NotFound("directory %s not found", id)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDirectory(s scanner) (*models.Directory, error) {
	var d models.Directory
	if err := s.Scan(&d.ID, &d.Path, &d.ParentID, &d.Owners, &d.PublicVisible); err != nil {
		return nil, err
	}
	return &d, nil
}
