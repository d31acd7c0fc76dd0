package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/models"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
	"github.com/noah-isme/articulacion-api/pkg/storage"
)

var simatExtensions = map[string]struct{}{"pdf": {}, "xlsx": {}, "xls": {}, "doc": {}, "docx": {}}

type simatStore interface {
	Create(ctx context.Context, filing *models.SimatFiling) error
	GetByID(ctx context.Context, id string) (*models.SimatFiling, error)
	List(ctx context.Context, filter models.SimatFilter) ([]models.SimatFiling, error)
	CountByStatus(ctx context.Context, scope models.AccessScope) (map[models.SimatStatus]int, error)
	Review(ctx context.Context, id string, status models.SimatStatus, reviewerID string, remark *string, at time.Time) error
}

// SimatServiceConfig holds upload limits and link settings for SIMAT filings.
type SimatServiceConfig struct {
	APIPrefix        string
	MaxFileSizeBytes int64
}

// SimatUpload describes where a filing belongs.
type SimatUpload struct {
	SchoolID string
	Scope    models.SimatScope
	GroupID  string
}

// SimatService runs the liaison-teacher to administrator SIMAT approval gate.
type SimatService struct {
	repo   simatStore
	blobs  blobStore
	groups groupLookup
	signer *storage.SignedURLSigner
	audit  auditWriter
	logger *zap.Logger
	cfg    SimatServiceConfig
	now    func() time.Time
}

// NewSimatService constructs SimatService.
func NewSimatService(repo simatStore, blobs blobStore, groups groupLookup, signer *storage.SignedURLSigner, audit auditWriter, logger *zap.Logger, cfg SimatServiceConfig) *SimatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 << 20
	}
	return &SimatService{
		repo:   repo,
		blobs:  blobs,
		groups: groups,
		signer: signer,
		audit:  audit,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upload files a SIMAT export for one of the teacher's liaison schools. A
// teacher with a single school may omit it.
func (s *SimatService) Upload(ctx context.Context, actor models.Actor, req SimatUpload, file UploadFile) (*models.SimatFiling, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only liaison teachers can file SIMAT documents")
	}
	schoolID, err := liaisonSchool(actor, strings.TrimSpace(req.SchoolID))
	if err != nil {
		return nil, err
	}

	scope := req.Scope
	if scope == "" {
		scope = models.SimatScopeSchool
	}
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown SIMAT scope %q", scope))
	}
	var groupID *string
	if scope == models.SimatScopeGroup {
		id, err := s.schoolGroup(ctx, schoolID, strings.TrimSpace(req.GroupID))
		if err != nil {
			return nil, err
		}
		groupID = &id
	}

	ext, err := s.validateFile(file)
	if err != nil {
		return nil, err
	}
	relPath := fmt.Sprintf("simat/%s/%s.%s", schoolID, uuid.NewString(), ext)
	written, err := s.blobs.SaveStream(relPath, file.Reader, s.cfg.MaxFileSizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
		}
		return nil, appErrors.Internal(err, "failed to store SIMAT file")
	}
	if written == 0 {
		s.discard(relPath)
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	uploader := actor.UserID
	filing := &models.SimatFiling{
		Scope:      scope,
		SchoolID:   schoolID,
		GroupID:    groupID,
		UploadedBy: &uploader,
		FileName:   filepath.Base(file.Name),
		FilePath:   relPath,
		SizeBytes:  written,
		Extension:  ext,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, filing); err != nil {
		s.discard(relPath)
		return nil, appErrors.Internal(err, "failed to save SIMAT filing")
	}
	s.logger.Info("simat filing uploaded",
		zap.String("filing_id", filing.ID),
		zap.String("school_id", schoolID),
		zap.String("scope", string(scope)),
	)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionSimatUpload, models.AuditResourceSimat, filing.ID, nil, filing)
	return filing, nil
}

// List returns the filings visible to a staff member, newest first.
func (s *SimatService) List(ctx context.Context, actor models.Actor, status models.SimatStatus, schoolID string) ([]models.SimatFiling, error) {
	if _, ok := actor.Tier(); !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can list SIMAT filings")
	}
	if status != "" && !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown SIMAT status %q", status))
	}
	filings, err := s.repo.List(ctx, models.SimatFilter{Scope: actor.Scope, Status: status, SchoolID: schoolID})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list SIMAT filings")
	}
	if filings == nil {
		filings = []models.SimatFiling{}
	}
	return filings, nil
}

// Stats counts the visible filings per status.
func (s *SimatService) Stats(ctx context.Context, actor models.Actor) (*models.SimatStats, error) {
	if _, ok := actor.Tier(); !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can read SIMAT statistics")
	}
	counts, err := s.repo.CountByStatus(ctx, actor.Scope)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count SIMAT filings")
	}
	stats := &models.SimatStats{
		Pending:  counts[models.SimatStatusPending],
		Approved: counts[models.SimatStatusApproved],
		Rejected: counts[models.SimatStatusRejected],
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected
	return stats, nil
}

// Review records an administrator's verdict. A filing may be reviewed again;
// rejections need a remark.
func (s *SimatService) Review(ctx context.Context, actor models.Actor, filingID string, approve bool, remark string) (*models.SimatFiling, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}
	filing, err := s.load(ctx, filingID)
	if err != nil {
		return nil, err
	}
	remark = strings.TrimSpace(remark)
	status := models.SimatStatusApproved
	if !approve {
		if remark == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a remark is required to reject a SIMAT filing")
		}
		status = models.SimatStatusRejected
	}
	var note *string
	if remark != "" {
		note = &remark
	}

	at := s.now()
	if err := s.repo.Review(ctx, filing.ID, status, actor.UserID, note, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "SIMAT filing not found")
		}
		return nil, appErrors.Internal(err, "failed to review SIMAT filing")
	}
	before := *filing
	reviewer := actor.UserID
	filing.Status = status
	filing.Remark = note
	filing.ReviewedBy = &reviewer
	filing.ReviewedAt = &at
	filing.UpdatedAt = at
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionSimatReview, models.AuditResourceSimat, filing.ID, before, filing)
	return filing, nil
}

// DownloadURL issues a signed, expiring link to a filing's file.
func (s *SimatService) DownloadURL(ctx context.Context, actor models.Actor, filingID string) (*dto.DownloadURLResponse, error) {
	filing, err := s.load(ctx, filingID)
	if err != nil {
		return nil, err
	}
	if _, ok := actor.Tier(); !ok || !actor.Scope.CoversSchool(filing.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "SIMAT filing is outside your scope")
	}
	token, expiresAt, err := s.signer.Generate(filing.ID, filing.FilePath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	url := strings.TrimRight(s.cfg.APIPrefix, "/") + "/simat-files/" + token
	return &dto.DownloadURLResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// OpenByToken resolves a signed link and opens the filing's file.
func (s *SimatService) OpenByToken(ctx context.Context, token string) (*DocumentDownload, error) {
	filingID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	filing, err := s.load(ctx, filingID)
	if err != nil {
		return nil, err
	}
	if filing.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.blobs.Open(filing.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "SIMAT file not found")
		}
		return nil, appErrors.Internal(err, "failed to open SIMAT file")
	}
	name := filing.FileName
	if name == "" {
		name = "simat." + filing.Extension
	}
	return &DocumentDownload{File: file, FileName: name, Size: filing.SizeBytes}, nil
}

// CountPending returns the number of filings awaiting review inside scope.
func (s *SimatService) CountPending(ctx context.Context, scope models.AccessScope) (int, error) {
	counts, err := s.repo.CountByStatus(ctx, scope)
	if err != nil {
		return 0, err
	}
	return counts[models.SimatStatusPending], nil
}

func (s *SimatService) schoolGroup(ctx context.Context, schoolID, groupID string) (string, error) {
	if groupID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "group_id is required for a group filing")
	}
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return "", appErrors.Internal(err, "failed to load group")
	}
	if group.SchoolID != schoolID {
		return "", appErrors.Clone(appErrors.ErrValidation, "group does not belong to the school")
	}
	return group.ID, nil
}

func (s *SimatService) validateFile(file UploadFile) (string, error) {
	if file.Reader == nil || file.Size == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if file.Size > s.cfg.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), ".")
	if _, ok := simatExtensions[ext]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "file type not allowed, use PDF, Excel or Word")
	}
	return ext, nil
}

func (s *SimatService) load(ctx context.Context, id string) (*models.SimatFiling, error) {
	filing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "SIMAT filing not found")
		}
		return nil, appErrors.Internal(err, "failed to load SIMAT filing")
	}
	return filing, nil
}

func (s *SimatService) discard(relPath string) {
	if err := s.blobs.Delete(relPath); err != nil {
		s.logger.Warn("failed to remove orphaned SIMAT file", zap.String("path", relPath), zap.Error(err))
	}
}

// liaisonSchool picks the school a teacher files for.
func liaisonSchool(actor models.Actor, requested string) (string, error) {
	schools := actor.Scope.SchoolIDs
	switch {
	case requested != "":
		if !actor.Scope.CoversSchool(requested) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "school is not one of your liaison schools")
		}
		return requested, nil
	case len(schools) == 1:
		return schools[0], nil
	case len(schools) == 0:
		return "", appErrors.Clone(appErrors.ErrForbidden, "no liaison school assigned")
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "school_id is required when you are liaison for several schools")
	}
}
