package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

const selectColumns = `SELECT id, filename, size_bytes, extension, content_type, checksum, created_at,
		category_id, directory_id, stored_id, open_visible, owners FROM files`

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.FileRecord) error {
	query := `INSERT INTO files (id, filename, size_bytes, extension, content_type, checksum, created_at,
			category_id, directory_id, stored_id, open_visible, owners)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.Filename, f.SizeBytes, f.Extension, f.ContentType, f.Checksum, f.CreatedAt,
		nullable(f.CategoryID), f.DirectoryID, f.StoredID, f.OpenVisible, f.Owners)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Conflict("file %q already exists", f.Filename)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites every mutable column of the record with id f.ID.
func (r *PostgresRepository) Update(ctx context.Context, f *models.FileRecord) error {
	query := `UPDATE files SET filename=$2, size_bytes=$3, extension=$4, content_type=$5, checksum=$6,
			created_at=$7, category_id=$8, directory_id=$9, stored_id=$10, open_visible=$11, owners=$12
		WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query,
		f.ID, f.Filename, f.SizeBytes, f.Extension, f.ContentType, f.Checksum, f.CreatedAt,
		nullable(f.CategoryID), f.DirectoryID, f.StoredID, f.OpenVisible, f.Owners)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Conflict("file %q already exists", f.Filename)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, f.ID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.NotFound("file %s not found", id)
	}
	return r.getOne(ctx, selectColumns+` WHERE id=$1`, "file "+id, id)
}

func (r *PostgresRepository) GetByStoredID(ctx context.Context, storedID string) (*models.FileRecord, error) {
	return r.getOne(ctx, selectColumns+` WHERE stored_id=$1`, "stored object "+storedID, storedID)
}

func (r *PostgresRepository) FindByDirectoryAndName(ctx context.Context, directoryID, filename string) (*models.FileRecord, error) {
	return r.getOne(ctx, selectColumns+` WHERE directory_id=$1 AND filename=$2`, fmt.Sprintf("file %q", filename), directoryID, filename)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, what string, args ...any) (*models.FileRecord, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("%s not found", what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) FindByDirectory(ctx context.Context, directoryID string) ([]*models.FileRecord, error) {
	return r.list(ctx, selectColumns+` WHERE directory_id=$1 ORDER BY filename`, directoryID)
}

// FindByDirectoryAndCategory matches nothing for ids that are not UUIDs.
func (r *PostgresRepository) FindByDirectoryAndCategory(ctx context.Context, directoryID, categoryID string) ([]*models.FileRecord, error) {
	if uuid.Validate(directoryID) != nil || uuid.Validate(categoryID) != nil {
		return nil, nil
	}
	return r.list(ctx, selectColumns+` WHERE directory_id=$1 AND category_id=$2 ORDER BY filename`, directoryID, categoryID)
}

func (r *PostgresRepository) SearchByName(ctx context.Context, fragment string) ([]*models.FileRecord, error) {
	pattern := "%" + escapeLike(fragment) + "%"
	return r.list(ctx, selectColumns+` WHERE filename ILIKE $1 ORDER BY filename`, pattern)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountByDirectory(ctx context.Context, directoryID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE directory_id=$1`, directoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
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
		return common.NotFound("file %s not found", id)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.FileRecord, error) {
	var (
		f        models.FileRecord
		category sql.NullString
	)
	err := s.Scan(&f.ID, &f.Filename, &f.SizeBytes, &f.Extension, &f.ContentType, &f.Checksum, &f.CreatedAt,
		&category, &f.DirectoryID, &f.StoredID, &f.OpenVisible, &f.Owners)
	if err != nil {
		return nil, err
	}
	f.CategoryID = category.String
	return &f, nil
}
