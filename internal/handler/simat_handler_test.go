package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/internal/service"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
)

type fakeSimatSrv struct {
	filing *models.SimatFiling
	err    error

	lastUpload  service.SimatUpload
	lastBody    string
	lastStatus  models.SimatStatus
	lastSchool  string
	lastApprove bool
	lastRemark  string
}

func (f *fakeSimatSrv) Upload(_ context.Context, _ models.Actor, req service.SimatUpload, file service.UploadFile) (*models.SimatFiling, error) {
	f.lastUpload = req
	body, _ := io.ReadAll(file.Reader)
	f.lastBody = string(body)
	return f.filing, f.err
}

func (f *fakeSimatSrv) List(_ context.Context, _ models.Actor, status models.SimatStatus, schoolID string) ([]models.SimatFiling, error) {
	f.lastStatus = status
	f.lastSchool = schoolID
	return []models.SimatFiling{}, f.err
}

func (f *fakeSimatSrv) Stats(context.Context, models.Actor) (*models.SimatStats, error) {
	return &models.SimatStats{Total: 4, Pending: 2, Approved: 1, Rejected: 1}, f.err
}

func (f *fakeSimatSrv) Review(_ context.Context, _ models.Actor, _ string, approve bool, remark string) (*models.SimatFiling, error) {
	f.lastApprove = approve
	f.lastRemark = remark
	return f.filing, f.err
}

func (f *fakeSimatSrv) DownloadURL(context.Context, models.Actor, string) (*dto.DownloadURLResponse, error) {
	return &dto.DownloadURLResponse{URL: "/api/v1/simat-files/tok"}, f.err
}

func (f *fakeSimatSrv) OpenByToken(context.Context, string) (*service.DocumentDownload, error) {
	return nil, f.err
}

func TestSimatHandlerUploadNormalisesScope(t *testing.T) {
	srv := &fakeSimatSrv{filing: &models.SimatFiling{ID: "simat-1", Status: models.SimatStatusPending}}
	handler := NewSimatHandler(srv)

	c := multipartContext(t, "/simat", map[string]string{"scope": "group", "group_id": "grp-1"}, "simat.xlsx", "rows")
	withActor(c, teacherActor)
	handler.Upload(c)

	require.Equal(t, http.StatusCreated, c.Writer.Status())
	assert.Equal(t, models.SimatScopeGroup, srv.lastUpload.Scope)
	assert.Equal(t, "grp-1", srv.lastUpload.GroupID)
	assert.Equal(t, "rows", srv.lastBody)

	c = multipartContext(t, "/simat", nil, "", "")
	withActor(c, teacherActor)
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, c.Writer.Status())
}

func TestSimatHandlerListAndStats(t *testing.T) {
	srv := &fakeSimatSrv{}
	handler := NewSimatHandler(srv)

	c, w := newGinContext(http.MethodGet, "/simat?status=pending&school_id=sch-1", nil)
	withActor(c, adminActor)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SimatStatusPending, srv.lastStatus)
	assert.Equal(t, "sch-1", srv.lastSchool)

	c, w = newGinContext(http.MethodGet, "/simat/stats", nil)
	withActor(c, adminActor)
	handler.Stats(c)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.SimatStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Pending)
}

func TestSimatHandlerReview(t *testing.T) {
	srv := &fakeSimatSrv{filing: &models.SimatFiling{ID: "simat-1", Status: models.SimatStatusRejected}}
	handler := NewSimatHandler(srv)

	c, w := newGinContext(http.MethodPost, "/simat/simat-1/review", []byte(`{"approve":false,"remark":"wrong year"}`))
	c.Params = gin.Params{{Key: "id", Value: "simat-1"}}
	withActor(c, adminActor)
	handler.Review(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, srv.lastApprove)
	assert.Equal(t, "wrong year", srv.lastRemark)

	c, w = newGinContext(http.MethodPost, "/simat/simat-1/review", []byte(`{}`))
	withActor(c, adminActor)
	handler.Review(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	srv.err = appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	c, w = newGinContext(http.MethodPost, "/simat/simat-1/review", []byte(`{"approve":true}`))
	withActor(c, teacherActor)
	handler.Review(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSimatHandlerDownloadRejectsBadToken(t *testing.T) {
	handler := NewSimatHandler(&fakeSimatSrv{err: appErrors.Clone(appErrors.ErrForbidden, "invalid download link")})

	c, w := newGinContext(http.MethodGet, "/simat-files/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
