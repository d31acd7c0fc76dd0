package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/middleware"
	"github.com/noah-isme/articulacion-api/internal/models"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
)

type fakeEnrollmentSrv struct {
	detail     *dto.EnrollmentDetail
	enrollment *models.Enrollment
	summary    *models.EnrollmentSummary
	summaryHit bool
	bulk       *models.BulkResult
	history    []models.AuditLog
	err        error

	lastFilter models.EnrollmentFilter
	lastTier   models.Tier
	lastTarget models.EnrollmentState
	lastRemark string
	lastRaw    string
	lastLimit  int
}

func (f *fakeEnrollmentSrv) Mine(context.Context, models.Actor) (*dto.EnrollmentDetail, error) {
	return f.detail, f.err
}

func (f *fakeEnrollmentSrv) Get(context.Context, models.Actor, string) (*dto.EnrollmentDetail, error) {
	return f.detail, f.err
}

func (f *fakeEnrollmentSrv) History(_ context.Context, _ models.Actor, _ string, limit int) ([]models.AuditLog, error) {
	f.lastLimit = limit
	return f.history, f.err
}

func (f *fakeEnrollmentSrv) List(_ context.Context, _ models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentListItem, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.EnrollmentListItem{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 0}, f.err
}

func (f *fakeEnrollmentSrv) Summary(context.Context, models.Actor, string) (*models.EnrollmentSummary, bool, error) {
	return f.summary, f.summaryHit, f.err
}

func (f *fakeEnrollmentSrv) UpdateProfile(context.Context, models.Actor, dto.ProfileUpdateRequest) (*models.StudentProfile, error) {
	return &models.StudentProfile{ID: "s1"}, f.err
}

func (f *fakeEnrollmentSrv) UpdateDocumentType(_ context.Context, _ models.Actor, _ string, raw string) (*models.StudentProfile, error) {
	f.lastRaw = raw
	return &models.StudentProfile{ID: "s1"}, f.err
}

func (f *fakeEnrollmentSrv) Submit(context.Context, models.Actor) (*models.Enrollment, error) {
	return f.enrollment, f.err
}

func (f *fakeEnrollmentSrv) SetState(_ context.Context, _ models.Actor, _ string, target models.EnrollmentState, tier models.Tier, remark string) (*models.Enrollment, error) {
	f.lastTarget = target
	f.lastTier = tier
	f.lastRemark = remark
	return f.enrollment, f.err
}

func (f *fakeEnrollmentSrv) Finalize(context.Context, models.Actor, string) (*models.Enrollment, error) {
	return f.enrollment, f.err
}

func (f *fakeEnrollmentSrv) BulkFinalize(context.Context, models.Actor) (*models.BulkResult, error) {
	return f.bulk, f.err
}

func TestEnrollmentHandlerListParsesFilters(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv)

	c, w := newGinContext(http.MethodGet, "/enrollments?state=submitted&school_id=sch-1&search=ana&page=2&page_size=5", nil)
	withActor(c, teacherActor)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EnrollmentStateSubmitted, srv.lastFilter.State)
	assert.Equal(t, "sch-1", srv.lastFilter.SchoolID)
	assert.Equal(t, "ana", srv.lastFilter.Search)
	assert.Equal(t, 2, srv.lastFilter.Page)
	assert.Equal(t, 5, srv.lastFilter.PageSize)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
}

func TestEnrollmentHandlerSummaryReportsCacheHit(t *testing.T) {
	srv := &fakeEnrollmentSrv{summary: &models.EnrollmentSummary{Total: 4}, summaryHit: true}
	handler := NewEnrollmentHandler(srv)

	c, w := newGinContext(http.MethodGet, "/enrollments/summary", nil)
	withActor(c, adminActor)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestEnrollmentHandlerHistoryLimit(t *testing.T) {
	srv := &fakeEnrollmentSrv{history: []models.AuditLog{{ID: "a1", Action: models.AuditActionEnrollmentSubmit}}}
	handler := NewEnrollmentHandler(srv)

	c, w := newGinContext(http.MethodGet, "/enrollments/enr-1/history", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	withActor(c, teacherActor)
	handler.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, srv.lastLimit)
	assert.Contains(t, w.Body.String(), models.AuditActionEnrollmentSubmit)

	c, _ = newGinContext(http.MethodGet, "/enrollments/enr-1/history?limit=5", nil)
	withActor(c, teacherActor)
	handler.History(c)
	assert.Equal(t, 5, srv.lastLimit)
}

func TestEnrollmentHandlerSetStateDefaultsTier(t *testing.T) {
	srv := &fakeEnrollmentSrv{enrollment: &models.Enrollment{ID: "enr-1", State: models.EnrollmentStatePending}}
	handler := NewEnrollmentHandler(srv)

	payload, _ := json.Marshal(dto.StateChangeRequest{State: "pending", Remark: "missing stamp"})
	c, w := newGinContext(http.MethodPut, "/enrollments/enr-1/state", payload)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	withActor(c, teacherActor)
	handler.SetState(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TierTeacher, srv.lastTier)
	assert.Equal(t, models.EnrollmentStatePending, srv.lastTarget)
	assert.Equal(t, "missing stamp", srv.lastRemark)

	payload, _ = json.Marshal(dto.StateChangeRequest{State: models.EnrollmentStateComplete, Tier: models.TierTeacher})
	c, w = newGinContext(http.MethodPut, "/enrollments/enr-1/state", payload)
	withActor(c, adminActor)
	handler.SetState(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TierTeacher, srv.lastTier)
}

func TestEnrollmentHandlerSetStateRejectsStudents(t *testing.T) {
	handler := NewEnrollmentHandler(&fakeEnrollmentSrv{})

	payload, _ := json.Marshal(dto.StateChangeRequest{State: models.EnrollmentStateComplete})
	c, w := newGinContext(http.MethodPut, "/enrollments/enr-1/state", payload)
	withActor(c, studentActor)
	handler.SetState(c)

	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newGinContext(http.MethodPut, "/enrollments/enr-1/state", []byte(`{"remark":"x"}`))
	withActor(c, teacherActor)
	handler.SetState(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerSubmitMapsWorkflowErrors(t *testing.T) {
	srv := &fakeEnrollmentSrv{err: appErrors.Clone(appErrors.ErrIncompleteDocuments, "missing documents: Identity document")}
	handler := NewEnrollmentHandler(srv)

	c, w := newGinContext(http.MethodPost, "/me/enrollment/submit", nil)
	withActor(c, studentActor)
	handler.Submit(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrIncompleteDocuments.Code, env.Error.Code)
}

func TestEnrollmentHandlerBulkFinalize(t *testing.T) {
	srv := &fakeEnrollmentSrv{bulk: &models.BulkResult{
		Succeeded: []string{"enr-1"},
		Failed:    []models.BulkFailure{{ID: "enr-2", Code: appErrors.ErrRequirementsNotMet.Code, Reason: "unapproved documents"}},
	}}
	handler := NewEnrollmentHandler(srv)

	c, w := newGinContext(http.MethodPost, "/enrollments/finalize-pre-enrolled", nil)
	withActor(c, adminActor)
	handler.BulkFinalize(c)

	require.Equal(t, http.StatusOK, w.Code)
	var result models.BulkResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, []string{"enr-1"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "enr-2", result.Failed[0].ID)
}

func TestEnrollmentHandlerDocumentType(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv)

	c, w := newGinContext(http.MethodPut, "/students/s1/document-type", []byte(`{"document_type":"TI"}`))
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	withActor(c, teacherActor)
	handler.UpdateDocumentType(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TI", srv.lastRaw)
}

func TestEnrollmentHandlerMineWithoutActor(t *testing.T) {
	handler := NewEnrollmentHandler(&fakeEnrollmentSrv{})
	c, w := newGinContext(http.MethodGet, "/me/enrollment", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-s1", Role: models.RoleStudent})

	handler.Mine(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
