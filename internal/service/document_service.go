package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/internal/repository"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
	"github.com/noah-isme/articulacion-api/pkg/storage"
)

type documentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListVersions(ctx context.Context, enrollmentID string, kind models.DocumentKind) ([]models.Document, error)
	AppendVersion(ctx context.Context, doc *models.Document, guard repository.VersionGuard) error
	Review(ctx context.Context, id string, review models.DocumentReview) error
	ApproveAllPending(ctx context.Context, enrollmentID, reviewerID string, at time.Time) (int64, error)
	Purge(ctx context.Context, id string) (*models.Document, error)
}

type blobStore interface {
	SaveStream(name string, r io.Reader, limit int64) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type enrollmentWorkflow interface {
	Initialize(ctx context.Context, actor models.Actor, studentID string) (*models.Enrollment, error)
	Authorize(ctx context.Context, actor models.Actor, enrollmentID string) (*models.Enrollment, *models.StudentProfile, error)
	PromoteIfSatisfied(ctx context.Context, actor models.Actor, enrollmentID string, tier models.Tier) (*models.Enrollment, bool, error)
}

// DocumentServiceConfig holds upload limits and link settings.
type DocumentServiceConfig struct {
	APIPrefix         string
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// UploadFile is a file received from a client.
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// DocumentDownload is an opened document ready to stream.
type DocumentDownload struct {
	File     *os.File
	FileName string
	Size     int64
}

// DocumentService implements the document review gate.
type DocumentService struct {
	repo       documentStore
	blobs      blobStore
	workflow   enrollmentWorkflow
	signer     *storage.SignedURLSigner
	audit      auditWriter
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        DocumentServiceConfig
	extensions map[string]struct{}
	now        func() time.Time
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentStore, blobs blobStore, workflow enrollmentWorkflow, signer *storage.SignedURLSigner, audit auditWriter, metrics *MetricsService, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 5 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"pdf", "jpg", "jpeg", "png"}
	}
	extensions := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		extensions[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")] = struct{}{}
	}
	return &DocumentService{
		repo:       repo,
		blobs:      blobs,
		workflow:   workflow,
		signer:     signer,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		extensions: extensions,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a new version of kind for the calling student's enrollment.
// A previous active version of the kind is superseded atomically.
func (s *DocumentService) Upload(ctx context.Context, actor models.Actor, kind models.DocumentKind, file UploadFile) (*models.Document, error) {
	studentID, err := ownStudentID(actor)
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document kind %q", kind))
	}
	ext, err := s.validateFile(file)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.workflow.Initialize(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	doc, err := s.store(ctx, enrollment.ID, kind, ext, file, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("enrollment_id", doc.EnrollmentID),
		zap.String("kind", string(doc.Kind)),
		zap.Int("version", doc.Version),
	)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentUpload, models.AuditResourceDocument, doc.ID, nil, doc)
	return doc, nil
}

// Replace uploads a new version in place of an active, unapproved document.
func (s *DocumentService) Replace(ctx context.Context, actor models.Actor, documentID string, file UploadFile) (*models.Document, error) {
	current, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.workflow.Authorize(ctx, actor, current.EnrollmentID); err != nil {
		return nil, err
	}
	if err := replaceable(current, documentID); err != nil {
		return nil, err
	}
	ext, err := s.validateFile(file)
	if err != nil {
		return nil, err
	}

	guard := func(active *models.Document) error {
		return replaceable(active, documentID)
	}
	doc, err := s.store(ctx, current.EnrollmentID, current.Kind, ext, file, guard)
	if err != nil {
		return nil, err
	}
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentReplace, models.AuditResourceDocument, doc.ID, current, doc)
	return doc, nil
}

// Review approves or rejects an active document and, on approval, runs the
// promotion check once the review has committed.
func (s *DocumentService) Review(ctx context.Context, actor models.Actor, documentID string, approve bool, remark string) (*dto.ReviewResponse, error) {
	tier, ok := actor.Tier()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can review documents")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	enrollment, _, err := s.workflow.Authorize(ctx, actor, doc.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !doc.Active() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document has been replaced by a newer version")
	}
	remark = strings.TrimSpace(remark)
	if !approve && remark == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a remark is required to reject a document")
	}

	review := models.DocumentReview{Approve: approve, ReviewerID: actor.UserID, Remark: remark, ReviewedAt: s.now()}
	if err := s.repo.Review(ctx, doc.ID, review); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document has been replaced by a newer version")
		}
		return nil, appErrors.Internal(err, "failed to review document")
	}
	before := *doc
	doc.Approved = &review.Approve
	doc.ReviewedBy = &review.ReviewerID
	doc.ReviewedAt = &review.ReviewedAt
	doc.Remark = nil
	if remark != "" {
		doc.Remark = &remark
	}
	s.metrics.RecordReview(tier, approve)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentReview, models.AuditResourceDocument, doc.ID, before, doc)

	resp := &dto.ReviewResponse{Document: dto.NewDocumentResponse(*doc), EnrollmentState: enrollment.State}
	if !approve {
		return resp, nil
	}
	updated, promoted, err := s.workflow.PromoteIfSatisfied(ctx, actor, doc.EnrollmentID, tier)
	if err != nil {
		return nil, err
	}
	resp.EnrollmentState = updated.State
	resp.Promoted = promoted
	return resp, nil
}

// ApproveAllPending approves every pending active document of an enrollment
// and then runs the promotion check once.
func (s *DocumentService) ApproveAllPending(ctx context.Context, actor models.Actor, enrollmentID string) (*dto.BulkApproveResponse, error) {
	tier, ok := actor.Tier()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can review documents")
	}
	if _, _, err := s.workflow.Authorize(ctx, actor, enrollmentID); err != nil {
		return nil, err
	}
	approved, err := s.repo.ApproveAllPending(ctx, enrollmentID, actor.UserID, s.now())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to approve documents")
	}
	for i := int64(0); i < approved; i++ {
		s.metrics.RecordReview(tier, true)
	}
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentBulk, models.AuditResourceEnrollment, enrollmentID, nil,
		map[string]int64{"approved": approved})

	updated, promoted, err := s.workflow.PromoteIfSatisfied(ctx, actor, enrollmentID, tier)
	if err != nil {
		return nil, err
	}
	return &dto.BulkApproveResponse{Approved: approved, EnrollmentState: updated.State, Promoted: promoted}, nil
}

// Get returns a document inside the actor's scope.
func (s *DocumentService) Get(ctx context.Context, actor models.Actor, documentID string) (*models.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.workflow.Authorize(ctx, actor, doc.EnrollmentID); err != nil {
		return nil, err
	}
	return doc, nil
}

// Versions lists every version of a kind for an enrollment, oldest first.
func (s *DocumentService) Versions(ctx context.Context, actor models.Actor, enrollmentID string, kind models.DocumentKind) ([]models.Document, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document kind %q", kind))
	}
	if _, _, err := s.workflow.Authorize(ctx, actor, enrollmentID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListVersions(ctx, enrollmentID, kind)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list document versions")
	}
	return docs, nil
}

// DownloadURL issues a signed, expiring link to a document's file.
func (s *DocumentService) DownloadURL(ctx context.Context, actor models.Actor, documentID string) (*dto.DownloadURLResponse, error) {
	doc, err := s.Get(ctx, actor, documentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	url := strings.TrimRight(s.cfg.APIPrefix, "/") + "/files/" + token
	return &dto.DownloadURLResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// OpenByToken resolves a signed link and opens the referenced file.
func (s *DocumentService) OpenByToken(ctx context.Context, token string) (*DocumentDownload, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.blobs.Open(doc.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		return nil, appErrors.Internal(err, "failed to open document")
	}
	return &DocumentDownload{File: file, FileName: downloadName(doc), Size: doc.SizeBytes}, nil
}

// Purge hard-deletes a document version and its stored file. Enrollment state is untouched.
func (s *DocumentService) Purge(ctx context.Context, actor models.Actor, documentID string) error {
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}
	purged, err := s.repo.Purge(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Internal(err, "failed to purge document")
	}
	if err := s.blobs.Delete(purged.FilePath); err != nil {
		s.logger.Warn("failed to delete purged document file", zap.String("path", purged.FilePath), zap.Error(err))
	}
	s.logger.Info("document purged", zap.String("document_id", purged.ID), zap.String("enrollment_id", purged.EnrollmentID))
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentPurge, models.AuditResourceDocument, purged.ID, purged, nil)
	return nil
}

func (s *DocumentService) store(ctx context.Context, enrollmentID string, kind models.DocumentKind, ext string, file UploadFile, guard repository.VersionGuard) (*models.Document, error) {
	relPath := fmt.Sprintf("enrollments/%s/%s/%s.%s", enrollmentID, strings.ToLower(string(kind)), uuid.NewString(), ext)
	written, err := s.blobs.SaveStream(relPath, file.Reader, s.cfg.MaxFileSizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
		}
		return nil, appErrors.Internal(err, "failed to store document")
	}
	if written == 0 {
		s.discard(relPath)
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	doc := &models.Document{
		EnrollmentID: enrollmentID,
		Kind:         kind,
		FileName:     filepath.Base(file.Name),
		FilePath:     relPath,
		SizeBytes:    written,
		Extension:    ext,
	}
	if err := s.repo.AppendVersion(ctx, doc, guard); err != nil {
		s.discard(relPath)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Internal(err, "failed to save document")
	}
	return doc, nil
}

func (s *DocumentService) validateFile(file UploadFile) (string, error) {
	if file.Reader == nil || file.Size == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if file.Size > s.cfg.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), ".")
	if _, ok := s.extensions[ext]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", ext))
	}
	return ext, nil
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) discard(relPath string) {
	if err := s.blobs.Delete(relPath); err != nil {
		s.logger.Warn("failed to remove orphaned document file", zap.String("path", relPath), zap.Error(err))
	}
}

// replaceable reports whether active is the version the caller wants to replace.
func replaceable(active *models.Document, documentID string) error {
	if active == nil || active.ID != documentID || !active.Active() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "document is no longer the active version")
	}
	if active.IsApproved() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "approved documents cannot be replaced")
	}
	return nil
}

func downloadName(doc *models.Document) string {
	if doc.FileName != "" {
		return doc.FileName
	}
	return fmt.Sprintf("%s_v%d.%s", strings.ToLower(string(doc.Kind)), doc.Version, doc.Extension)
}
