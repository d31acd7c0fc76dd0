package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/articulacion-api/internal/models"
)

var simatRowColumns = []string{"id", "scope", "school_id", "group_id", "uploaded_by", "file_name", "file_path", "size_bytes", "extension", "status", "remark", "reviewed_by", "reviewed_at", "created_at", "updated_at"}

func TestSimatCreateStartsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSimatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO simat_filings")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	filing := &models.SimatFiling{Scope: models.SimatScopeSchool, SchoolID: "sch-1", FileName: "simat.xlsx", FilePath: "simat/sch-1/a.xlsx", Extension: "xlsx", Status: models.SimatStatusApproved}
	require.NoError(t, repo.Create(context.Background(), filing))
	assert.NotEmpty(t, filing.ID)
	assert.Equal(t, models.SimatStatusPending, filing.Status)
	assert.False(t, filing.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimatListScopesTeacherSchools(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSimatRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM simat_filings WHERE school_id = ANY($1) AND status = $2 ORDER BY created_at DESC")).
		WithArgs(sqlmock.AnyArg(), models.SimatStatusPending).
		WillReturnRows(sqlmock.NewRows(simatRowColumns).
			AddRow("f1", "GROUP", "sch-1", "grp-1", "t1", "simat.pdf", "simat/sch-1/f1.pdf", 20, "pdf", "PENDING", nil, nil, nil, now, now))

	filings, err := repo.List(context.Background(), models.SimatFilter{
		Scope:  models.AccessScope{SchoolIDs: []string{"sch-1"}},
		Status: models.SimatStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, filings, 1)
	assert.Equal(t, models.SimatScopeGroup, filings[0].Scope)
	require.NotNil(t, filings[0].GroupID)
	assert.Equal(t, "grp-1", *filings[0].GroupID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimatListWithoutSchoolsMatchesNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSimatRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM simat_filings WHERE 1=0 ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(simatRowColumns))

	filings, err := repo.List(context.Background(), models.SimatFilter{})
	require.NoError(t, err)
	assert.Empty(t, filings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimatCountByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSimatRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS total FROM simat_filings GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).AddRow("PENDING", 3).AddRow("APPROVED", 1))

	counts, err := repo.CountByStatus(context.Background(), models.AccessScope{All: true})
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.SimatStatusPending])
	assert.Equal(t, 1, counts[models.SimatStatusApproved])
	assert.Zero(t, counts[models.SimatStatusRejected])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimatReviewMissingFiling(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSimatRepository(db)

	remark := "wrong term"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE simat_filings SET status = $2")).
		WithArgs("missing", models.SimatStatusRejected, "a1", sqlmock.AnyArg(), "wrong term").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Review(context.Background(), "missing", models.SimatStatusRejected, "a1", &remark, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
