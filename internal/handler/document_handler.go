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

type documentService interface {
	Upload(ctx context.Context, actor models.Actor, kind models.DocumentKind, file service.UploadFile) (*models.Document, error)
	Replace(ctx context.Context, actor models.Actor, documentID string, file service.UploadFile) (*models.Document, error)
	Review(ctx context.Context, actor models.Actor, documentID string, approve bool, remark string) (*dto.ReviewResponse, error)
	ApproveAllPending(ctx context.Context, actor models.Actor, enrollmentID string) (*dto.BulkApproveResponse, error)
	Get(ctx context.Context, actor models.Actor, documentID string) (*models.Document, error)
	Versions(ctx context.Context, actor models.Actor, enrollmentID string, kind models.DocumentKind) ([]models.Document, error)
	DownloadURL(ctx context.Context, actor models.Actor, documentID string) (*dto.DownloadURLResponse, error)
	OpenByToken(ctx context.Context, token string) (*service.DocumentDownload, error)
	Purge(ctx context.Context, actor models.Actor, documentID string) error
}

// DocumentHandler exposes document upload and review endpoints.
type DocumentHandler struct {
	documents documentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents documentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload godoc
// @Summary Upload an enrollment document
// @Description Stores a new version of the kind; an existing active version is superseded
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param kind formData string true "Document kind"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/enrollment/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	kind := models.DocumentKind(strings.ToUpper(strings.TrimSpace(c.PostForm("kind"))))
	if kind == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "kind is required"))
		return
	}
	file, closeFile, err := formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	doc, err := h.documents.Upload(c.Request.Context(), actor, kind, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewDocumentResponse(*doc))
}

// Replace godoc
// @Summary Replace a rejected document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID"
// @Param file formData file true "Replacement file"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/replace [post]
func (h *DocumentHandler) Replace(c *gin.Context) {
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

	doc, err := h.documents.Replace(c.Request.Context(), actor, c.Param("id"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewDocumentResponse(*doc))
}

// Review godoc
// @Summary Approve or reject a document
// @Description Approval may promote the enrollment to PRE_ENROLLED when every required document is approved
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/review [post]
func (h *DocumentHandler) Review(c *gin.Context) {
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
	result, err := h.documents.Review(c.Request.Context(), actor, c.Param("id"), *req.Approve, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ApproveAll godoc
// @Summary Approve every pending document of an enrollment
// @Tags Documents
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/documents/approve-all [post]
func (h *DocumentHandler) ApproveAll(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	result, err := h.documents.ApproveAllPending(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Document detail
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDocumentResponse(*doc), nil)
}

// Versions godoc
// @Summary Version history of one document kind
// @Tags Documents
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param kind path string true "Document kind"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/documents/{kind}/versions [get]
func (h *DocumentHandler) Versions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	kind := models.DocumentKind(strings.ToUpper(c.Param("kind")))
	docs, err := h.documents.Versions(c.Request.Context(), actor, c.Param("id"), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDocumentResponses(docs), nil)
}

// DownloadURL godoc
// @Summary Signed download link for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	link, err := h.documents.DownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a document by signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	download, err := h.documents.OpenByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := mime.TypeByExtension(filepath.Ext(download.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.FileName),
		"Cache-Control":       "no-store",
	}
	c.DataFromReader(http.StatusOK, download.Size, contentType, download.File, headers)
}

// Purge godoc
// @Summary Delete a document version
// @Description Removes the version and its file; the previous version becomes active again
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Purge(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.documents.Purge(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func formUpload(c *gin.Context) (service.UploadFile, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return service.UploadFile{}, nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	src, err := header.Open()
	if err != nil {
		return service.UploadFile{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	file := service.UploadFile{Name: header.Filename, Size: header.Size, Reader: src}
	return file, func() { _ = src.Close() }, nil
}
