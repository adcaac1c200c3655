package directories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docsID  = "7d9c1c55-2a57-4c1e-8f3e-0d1a5b0c9a01"
	teamID  = "7d9c1c55-2a57-4c1e-8f3e-0d1a5b0c9a02"
	otherID = "7d9c1c55-2a57-4c1e-8f3e-0d1a5b0c9a03"
)

var dirColumns = []string{"id", "path", "parent_id", "owners", "public_visible"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT INTO directories \(id, path, parent_id, owners, public_visible\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5\)$`).
		WithArgs(docsID, "docs", models.RootParentID, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Directory{
		ID: docsID, Path: "docs", ParentID: models.RootParentID,
		Owners: models.Grants{{Principal: "alice", Kind: models.GrantPrivate, Mask: models.AllPrivileges}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO directories`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Directory{ID: docsID, Path: "docs", ParentID: models.RootParentID})
	assert.True(t, errors.Is(err, common.ErrorConflict), "got %v", err)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO directories`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Directory{ID: docsID})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByID_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(dirColumns).
		AddRow(docsID, "docs", models.RootParentID, []byte(`[{"principal":"alice","kind":"PRIVATE","mask":7}]`), true)
	mock.ExpectQuery(`SELECT id, path, parent_id, owners, public_visible FROM directories WHERE id=\$1`).
		WithArgs(docsID).
		WillReturnRows(rows)

	d, err := repo.GetByID(context.Background(), docsID)
	require.NoError(t, err)
	assert.Equal(t, "docs", d.Path)
	assert.True(t, d.PublicVisible)
	assert.True(t, d.IsRoot())
	assert.Equal(t, models.Grants{{Principal: "alice", Kind: models.GrantPrivate, Mask: 7}}, d.Owners)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM directories WHERE id=\$1`).
		WithArgs(docsID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), docsID)
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestGetByID_MalformedIDIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
	require.NoError(t, mock.ExpectationsWereMet(), "no query expected")
}

func TestFindByPathAndParent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM directories WHERE path=\$1 AND parent_id=\$2`).
		WithArgs("team", docsID).
		WillReturnRows(sqlmock.NewRows(dirColumns).AddRow(teamID, "team", docsID, []byte(`[]`), false))

	d, err := repo.FindByPathAndParent(context.Background(), "team", docsID)
	require.NoError(t, err)
	assert.Equal(t, teamID, d.ID)
	assert.Empty(t, d.Owners)

	mock.ExpectQuery(`FROM directories WHERE path=\$1 AND parent_id=\$2`).
		WithArgs("missing", docsID).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByPathAndParent(context.Background(), "missing", docsID)
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestFindChildren(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(dirColumns).
		AddRow(otherID, "archive", docsID, []byte(`[]`), false).
		AddRow(teamID, "team", docsID, []byte(`[]`), true)
	mock.ExpectQuery(`FROM directories WHERE parent_id=\$1 ORDER BY path`).
		WithArgs(docsID).
		WillReturnRows(rows)

	got, err := repo.FindChildren(context.Background(), docsID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "archive", got[0].Path)
	assert.Equal(t, "team", got[1].Path)
}

func TestFindChildren_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE parent_id=\$1`).WithArgs(docsID).WillReturnError(errors.New("db err"))
	_, err := repo.FindChildren(context.Background(), docsID)
	assert.Regexp(t, `failed to select directories: .*db err`, err.Error())

	rows := sqlmock.NewRows(dirColumns).
		AddRow(teamID, "team", docsID, []byte(`[]`), false).
		RowError(0, errors.New("row-err"))
	mock.ExpectQuery(`WHERE parent_id=\$1`).WithArgs(docsID).WillReturnRows(rows)
	_, err = repo.FindChildren(context.Background(), docsID)
	assert.EqualError(t, err, "row-err")

	bad := sqlmock.NewRows(dirColumns).AddRow(teamID, "team", docsID, []byte(`{oops`), false)
	mock.ExpectQuery(`WHERE parent_id=\$1`).WithArgs(docsID).WillReturnRows(bad)
	_, err = repo.FindChildren(context.Background(), docsID)
	assert.Error(t, err)
}

func TestCountChildren(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM directories WHERE parent_id=\$1`).
		WithArgs(docsID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountChildren(context.Background(), docsID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `UPDATE directories SET path=\$2, parent_id=\$3, owners=\$4, public_visible=\$5 WHERE id=\$1`
	d := &models.Directory{ID: teamID, Path: "people", ParentID: docsID}

	mock.ExpectExec(q).WithArgs(teamID, "people", docsID, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), d))

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.Update(context.Background(), d), common.ErrorNotFound))

	mock.ExpectExec(q).WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.True(t, errors.Is(repo.Update(context.Background(), d), common.ErrorConflict))

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 2))
	assert.Regexp(t, `unexpected rows affected: 2`, repo.Update(context.Background(), d).Error())
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `DELETE FROM directories WHERE id=\$1`

	mock.ExpectExec(q).WithArgs(teamID).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), teamID))

	mock.ExpectExec(q).WithArgs(teamID).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.Delete(context.Background(), teamID), common.ErrorNotFound))

	mock.ExpectExec(q).WithArgs(teamID).WillReturnError(&pgconn.PgError{Code: "23503"})
	err := repo.Delete(context.Background(), teamID)
	assert.True(t, errors.Is(err, common.ErrDirectoryNotEmpty))

	mock.ExpectExec(q).WithArgs(teamID).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))
	assert.Regexp(t, `rows affected error: .*rows-err`, repo.Delete(context.Background(), teamID).Error())

	require.NoError(t, mock.ExpectationsWereMet())
}
