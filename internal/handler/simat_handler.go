package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/internal/service"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
	"github.com/noah-isme/articulacion-api/pkg/response"
)

type simatService interface {
	Upload(ctx context.Context, actor models.Actor, req service.SimatUpload, file service.UploadFile) (*models.SimatFiling, error)
	List(ctx context.Context, actor models.Actor, status models.SimatStatus, schoolID string) ([]models.SimatFiling, error)
	Stats(ctx context.Context, actor models.Actor) (*models.SimatStats, error)
	Review(ctx context.Context, actor models.Actor, filingID string, approve bool, remark string) (*models.SimatFiling, error)
	DownloadURL(ctx context.Context, actor models.Actor, filingID string) (*dto.DownloadURLResponse, error)
	OpenByToken(ctx context.Context, token string) (*service.DocumentDownload, error)
}

// SimatHandler exposes SIMAT filing endpoints.
type SimatHandler struct {
	filings simatService
}

// NewSimatHandler constructs SimatHandler.
func NewSimatHandler(filings simatService) *SimatHandler {
	return &SimatHandler{filings: filings}
}

// Upload godoc
// @Summary File a SIMAT document
// @Description Liaison teachers file the SIMAT export of a school or one of its groups; it stays PENDING until an administrator reviews it
// @Tags SIMAT
// @Accept multipart/form-data
// @Produce json
// @Param school_id formData string false "School ID, required for liaisons of several schools"
// @Param scope formData string false "SCHOOL or GROUP"
// @Param group_id formData string false "Group ID for GROUP filings"
// @Param file formData file true "PDF, Excel or Word file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /simat [post]
func (h *SimatHandler) Upload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	file, closeFile, err := formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	req := service.SimatUpload{
		SchoolID: c.PostForm("school_id"),
		Scope:    models.SimatScope(strings.ToUpper(strings.TrimSpace(c.PostForm("scope")))),
		GroupID:  c.PostForm("group_id"),
	}
	filing, err := h.filings.Upload(c.Request.Context(), actor, req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, filing)
}

// List godoc
// @Summary List SIMAT filings
// @Tags SIMAT
// @Produce json
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param school_id query string false "Filter by school"
// @Success 200 {object} response.Envelope
// @Router /simat [get]
func (h *SimatHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	status := models.SimatStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	filings, err := h.filings.List(c.Request.Context(), actor, status, strings.TrimSpace(c.Query("school_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, filings, nil)
}

// Stats godoc
// @Summary SIMAT filings per status
// @Tags SIMAT
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /simat/stats [get]
func (h *SimatHandler) Stats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	stats, err := h.filings.Stats(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Review godoc
// @Summary Approve or reject a SIMAT filing
// @Tags SIMAT
// @Accept json
// @Produce json
// @Param id path string true "Filing ID"
// @Param payload body dto.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /simat/{id}/review [post]
func (h *SimatHandler) Review(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	if req.Approve == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approve is required"))
		return
	}
	filing, err := h.filings.Review(c.Request.Context(), actor, c.Param("id"), *req.Approve, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, filing, nil)
}

// DownloadURL godoc
// @Summary Signed download link for a SIMAT filing
// @Tags SIMAT
// @Produce json
// @Param id path string true "Filing ID"
// @Success 200 {object} response.Envelope
// @Router /simat/{id}/download-url [get]
func (h *SimatHandler) DownloadURL(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	link, err := h.filings.DownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a SIMAT filing by signed token
// @Tags SIMAT
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /simat-files/{token} [get]
func (h *SimatHandler) Download(c *gin.Context) {
	download, err := h.filings.OpenByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := mime.TypeByExtension(filepath.Ext(download.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, download.Size, contentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.FileName),
		"Cache-Control":       "no-store",
	})
}
