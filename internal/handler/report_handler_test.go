package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/middleware"
	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/internal/service"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	listResp    []dto.ReportStatusResponse
	listLimit   int
	download    *service.ReportDownload
	downloadErr error
	lastActor   models.Actor
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, actor models.Actor) (*dto.ReportJobResponse, error) {
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string, actor models.Actor) (*dto.ReportStatusResponse, error) {
	m.lastActor = actor
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) List(ctx context.Context, actor models.Actor, limit int) ([]dto.ReportStatusResponse, error) {
	m.listLimit = limit
	return m.listResp, nil
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

var (
	adminActor   = models.Actor{UserID: "admin-1", Role: models.RoleAdmin, Scope: models.AccessScope{All: true}}
	teacherActor = models.Actor{UserID: "teacher-1", Role: models.RoleTeacher, Scope: models.AccessScope{SchoolIDs: []string{"sch-1"}}}
	studentActor = models.Actor{UserID: "user-s1", Role: models.RoleStudent, Scope: models.AccessScope{StudentID: "s1"}}
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withActor(c *gin.Context, actor models.Actor) {
	c.Set(middleware.ContextActorKey, actor)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestReportHandlerGenerateReport(t *testing.T) {
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Type: models.ReportTypeRoster, Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeRoster, Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	withActor(c, teacherActor)

	handler.GenerateReport(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.lastActor.UserID)
}

func TestReportHandlerRequiresActor(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})
	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)

	handler.ReportStatus(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerReportStatus(t *testing.T) {
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	withActor(c, adminActor)

	handler.ReportStatus(c)
	require.Equal(t, http.StatusOK, w.Code)

	mockSvc.statusErr = appErrors.ErrForbidden
	c, w = newGinContext(http.MethodGet, "/reports/job-1", nil)
	withActor(c, teacherActor)
	handler.ReportStatus(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerListUsesLimit(t *testing.T) {
	mockSvc := &reportServiceMock{listResp: []dto.ReportStatusResponse{{ID: "job-1"}}}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports?limit=5", nil)
	withActor(c, adminActor)

	handler.ListReports(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, mockSvc.listLimit)
}

func TestReportHandlerDownloadReport(t *testing.T) {
	file, err := os.CreateTemp("", "report*.csv")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("data")
	_, _ = file.Seek(0, 0)

	mockSvc := &reportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "roster.csv",
			Format:    models.ReportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.DownloadReport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster.csv")
	assert.Equal(t, "data", w.Body.String())
}
