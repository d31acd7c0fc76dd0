package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/middleware"
	"github.com/noah-isme/articulacion-api/internal/models"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
	"github.com/noah-isme/articulacion-api/pkg/response"
)

type enrollmentService interface {
	Mine(ctx context.Context, actor models.Actor) (*dto.EnrollmentDetail, error)
	Get(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentDetail, error)
	History(ctx context.Context, actor models.Actor, id string, limit int) ([]models.AuditLog, error)
	List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentListItem, *models.Pagination, error)
	Summary(ctx context.Context, actor models.Actor, schoolID string) (*models.EnrollmentSummary, bool, error)
	UpdateProfile(ctx context.Context, actor models.Actor, req dto.ProfileUpdateRequest) (*models.StudentProfile, error)
	UpdateDocumentType(ctx context.Context, actor models.Actor, studentID, raw string) (*models.StudentProfile, error)
	Submit(ctx context.Context, actor models.Actor) (*models.Enrollment, error)
	SetState(ctx context.Context, actor models.Actor, enrollmentID string, target models.EnrollmentState, tier models.Tier, remark string) (*models.Enrollment, error)
	Finalize(ctx context.Context, actor models.Actor, enrollmentID string) (*models.Enrollment, error)
	BulkFinalize(ctx context.Context, actor models.Actor) (*models.BulkResult, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Mine godoc
// @Summary Current student's enrollment
// @Description Returns the caller's enrollment, creating the DRAFT record on first access
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /me/enrollment [get]
// @Router /me/enrollment [post]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	detail, err := h.enrollments.Mine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateProfile godoc
// @Summary Update enrollment profile
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.ProfileUpdateRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/profile [put]
func (h *EnrollmentHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	profile, err := h.enrollments.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Submit godoc
// @Summary Submit enrollment for review
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /me/enrollment/submit [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Submit(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param state query string false "Filter by state"
// @Param school_id query string false "Filter by school"
// @Param group_id query string false "Filter by group"
// @Param search query string false "Match student name or document"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		State:     models.EnrollmentState(strings.ToUpper(strings.TrimSpace(c.Query("state")))),
		SchoolID:  strings.TrimSpace(c.Query("school_id")),
		GroupID:   strings.TrimSpace(c.Query("group_id")),
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Summary godoc
// @Summary Enrollment counts per state
// @Tags Enrollments
// @Produce json
// @Param school_id query string false "Restrict to one school"
// @Success 200 {object} response.Envelope
// @Router /enrollments/summary [get]
func (h *EnrollmentHandler) Summary(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.enrollments.Summary(c.Request.Context(), actor, strings.TrimSpace(c.Query("school_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	detail, err := h.enrollments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// History godoc
// @Summary Audit history of an enrollment
// @Description Newest first; covers initialization, submission, validations and promotions
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/history [get]
func (h *EnrollmentHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	logs, err := h.enrollments.History(c.Request.Context(), actor, c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// SetState godoc
// @Summary Record a manual validation
// @Description Sets the enrollment state under the caller's tier, or the tier named in the payload
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.StateChangeRequest true "State payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/{id}/state [put]
func (h *EnrollmentHandler) SetState(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.StateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid state payload"))
		return
	}
	if strings.TrimSpace(string(req.State)) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "state is required"))
		return
	}
	tier := req.Tier
	if tier == "" {
		own, ok := actor.Tier()
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only staff may validate enrollments"))
			return
		}
		tier = own
	}
	target := models.EnrollmentState(strings.ToUpper(strings.TrimSpace(string(req.State))))
	enrollment, err := h.enrollments.SetState(c.Request.Context(), actor, c.Param("id"), target, tier, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// UpdateDocumentType godoc
// @Summary Change a student's identification type
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.DocumentTypeRequest true "Document type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/document-type [put]
func (h *EnrollmentHandler) UpdateDocumentType(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.DocumentTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document type payload"))
		return
	}
	profile, err := h.enrollments.UpdateDocumentType(c.Request.Context(), actor, c.Param("id"), req.DocumentType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Finalize godoc
// @Summary Finalize a pre-enrolled record
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/{id}/finalize [post]
func (h *EnrollmentHandler) Finalize(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Finalize(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// BulkFinalize godoc
// @Summary Finalize every pre-enrolled record
// @Description Processes each record independently and reports per-record failures
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/finalize-pre-enrolled [post]
func (h *EnrollmentHandler) BulkFinalize(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	result, err := h.enrollments.BulkFinalize(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
