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

var reportRowColumns = []string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WithArgs(sqlmock.AnyArg(), models.ReportTypeRoster, sqlmock.AnyArg(), models.ReportStatusQueued, 0, nil, "admin-1", sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	group := "grp-1"
	job := &models.ReportJob{
		Type:      models.ReportTypeRoster,
		Params:    models.ReportJobParams{GroupID: &group, Format: models.ReportFormatCSV},
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow(job.ID, "ROSTER", `{"group_id":"grp-1","state":"PRE_ENROLLED","format":"csv"}`, "QUEUED", 0, nil, "admin-1", time.Now(), nil, nil))

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Params.GroupID)
	assert.Equal(t, "grp-1", *fetched.Params.GroupID)
	require.NotNil(t, fetched.Params.State)
	assert.Equal(t, models.EnrollmentStatePreEnrolled, *fetched.Params.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetMissingReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	status := models.ReportStatusFinished
	progress := 100
	result := "/api/v1/export/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, progress = $2, result_url = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, progress, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateWithoutChangesSkipsQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	require.NoError(t, NewReportRepository(db).Update(context.Background(), "job-1", UpdateReportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2")).
		WithArgs(models.ReportStatusQueued, 20).
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow("job-1", "ROSTER", `{"format":"pdf"}`, "QUEUED", 0, nil, "admin-1", time.Now(), nil, nil))

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ReportFormatPDF, jobs[0].Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND result_url <> '' AND finished_at IS NOT NULL AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3")).
		WithArgs(models.ReportStatusFinished, sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow("job-1", "DOCUMENT_BUNDLE", `{"group_id":"grp-1","format":"zip"}`, "FINISHED", 100, "/api/v1/export/token", "admin-1", time.Now().Add(-48*time.Hour), time.Now().Add(-25*time.Hour), nil))

	jobs, err := repo.ListFinishedBefore(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ReportTypeDocumentBundle, jobs[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListByCreatorClampsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("admin-1", 20).
		WillReturnRows(sqlmock.NewRows(reportRowColumns))

	jobs, err := repo.ListByCreator(context.Background(), "admin-1", 500)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
