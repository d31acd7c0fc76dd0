package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/dto"
	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/internal/repository"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
)

const summaryCachePrefix = "enrollments:summary:"

type enrollmentStore interface {
	Initialize(ctx context.Context, studentID string) (*models.Enrollment, bool, error)
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentListItem, int, error)
	CountByState(ctx context.Context, scope models.AccessScope, schoolID string) (map[models.EnrollmentState]int, error)
	ListIDsByState(ctx context.Context, state models.EnrollmentState) ([]string, error)
	Transition(ctx context.Context, id string, decide repository.TransitionFunc) (*models.Enrollment, error)
}

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	UpdateProfile(ctx context.Context, student *models.StudentProfile) error
	UpdateDocumentType(ctx context.Context, id string, docType models.DocumentType) error
}

type activeDocumentLister interface {
	ListActive(ctx context.Context, enrollmentID string) ([]models.Document, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type auditHistory interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type pendingFilingCounter interface {
	CountPending(ctx context.Context, scope models.AccessScope) (int, error)
}

// EnrollmentServiceOption customises optional collaborators.
type EnrollmentServiceOption func(*EnrollmentService)

// WithAuditHistory enables History by giving the service read access to the audit trail.
func WithAuditHistory(history auditHistory) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		s.history = history
	}
}

// WithSimatCounter adds the live count of pending SIMAT filings to staff summaries.
func WithSimatCounter(counter pendingFilingCounter) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		s.simat = counter
	}
}

// EnrollmentServiceConfig tunes the enrollment workflow.
type EnrollmentServiceConfig struct {
	SummaryTTL time.Duration
}

// EnrollmentService drives the enrollment state machine.
type EnrollmentService struct {
	repo      enrollmentStore
	students  studentStore
	documents activeDocumentLister
	groups    groupLookup
	resolver  *RequirementResolver
	audit     auditWriter
	history   auditHistory
	simat     pendingFilingCounter
	cache     summaryCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EnrollmentServiceConfig
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(
	repo enrollmentStore,
	students studentStore,
	documents activeDocumentLister,
	groups groupLookup,
	resolver *RequirementResolver,
	audit auditWriter,
	cache summaryCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg EnrollmentServiceConfig,
	opts ...EnrollmentServiceOption,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewRequirementResolver(nil)
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = time.Minute
	}
	svc := &EnrollmentService{
		repo:      repo,
		students:  students,
		documents: documents,
		groups:    groups,
		resolver:  resolver,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Initialize returns the enrollment of a student, creating a DRAFT one on first access.
func (s *EnrollmentService) Initialize(ctx context.Context, actor models.Actor, studentID string) (*models.Enrollment, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !actor.Scope.CoversStudent(student.ID, student.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is outside your scope")
	}
	enrollment, created, err := s.repo.Initialize(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to initialize enrollment")
	}
	if created {
		s.logger.Info("enrollment initialized", zap.String("enrollment_id", enrollment.ID), zap.String("student_id", student.ID))
		writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnrollmentInit, models.AuditResourceEnrollment, enrollment.ID, nil, enrollment)
		s.invalidateSummary(ctx)
	}
	return enrollment, nil
}

// Mine returns the detail of the calling student's own enrollment.
func (s *EnrollmentService) Mine(ctx context.Context, actor models.Actor) (*dto.EnrollmentDetail, error) {
	studentID, err := ownStudentID(actor)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.Initialize(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, enrollment, student)
}

// Get returns the detail of an enrollment inside the actor's scope.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentDetail, error) {
	enrollment, student, err := s.Authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, enrollment, student)
}

// Authorize loads an enrollment and its student, failing when the actor may not see it.
func (s *EnrollmentService) Authorize(ctx context.Context, actor models.Actor, enrollmentID string) (*models.Enrollment, *models.StudentProfile, error) {
	enrollment, err := s.repo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load enrollment")
	}
	student, err := s.loadStudent(ctx, enrollment.StudentID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Scope.CoversStudent(student.ID, student.SchoolID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment is outside your scope")
	}
	return enrollment, student, nil
}

// History returns the newest audit entries recorded against an enrollment.
func (s *EnrollmentService) History(ctx context.Context, actor models.Actor, enrollmentID string, limit int) ([]models.AuditLog, error) {
	if s.history == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment history is not available")
	}
	enrollment, _, err := s.Authorize(ctx, actor, enrollmentID)
	if err != nil {
		return nil, err
	}
	logs, err := s.history.ListByResource(ctx, models.AuditResourceEnrollment, enrollment.ID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollment history")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}

// List returns the enrollments visible to the actor with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentListItem, *models.Pagination, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("unknown enrollment state %q", filter.State))
	}
	filter.Scope = actor.Scope
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary counts the actor's enrollments per state, optionally for one school.
// The boolean reports whether the result came from the cache.
func (s *EnrollmentService) Summary(ctx context.Context, actor models.Actor, schoolID string) (*models.EnrollmentSummary, bool, error) {
	key := summaryCacheKey(actor, schoolID)
	var cached models.EnrollmentSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return s.withPendingSimat(ctx, actor, &cached), true, nil
		}
	}

	counts, err := s.repo.CountByState(ctx, actor.Scope, schoolID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to summarise enrollments")
	}
	summary := &models.EnrollmentSummary{ByState: make(map[models.EnrollmentState]int, len(counts))}
	for _, state := range models.EnrollmentStates() {
		summary.ByState[state] = counts[state]
		summary.Total += counts[state]
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, summary, s.cfg.SummaryTTL)
	}
	return s.withPendingSimat(ctx, actor, summary), false, nil
}

// withPendingSimat returns a copy of summary carrying the pending filing count.
// The count is read live and never cached with the enrollment counts.
func (s *EnrollmentService) withPendingSimat(ctx context.Context, actor models.Actor, summary *models.EnrollmentSummary) *models.EnrollmentSummary {
	if s.simat == nil {
		return summary
	}
	if _, staff := actor.Tier(); !staff {
		return summary
	}
	pending, err := s.simat.CountPending(ctx, actor.Scope)
	if err != nil {
		s.logger.Warn("failed to count pending simat filings", zap.Error(err))
		return summary
	}
	out := *summary
	out.PendingSimat = &pending
	return &out
}

// UpdateProfile stores the caller's residence, guardian and placement fields.
func (s *EnrollmentService) UpdateProfile(ctx context.Context, actor models.Actor, req dto.ProfileUpdateRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	studentID, err := ownStudentID(actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.Initialize(ctx, actor, studentID); err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	before := *student

	schoolID, programID := req.SchoolID, req.ProgramID
	if req.GroupID != nil {
		group, err := s.groups.GetGroup(ctx, *req.GroupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "group not found")
			}
			return nil, appErrors.Internal(err, "failed to load group")
		}
		if schoolID != nil && *schoolID != group.SchoolID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "group does not belong to the selected school")
		}
		if programID != nil && group.ProgramID != nil && *programID != *group.ProgramID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "group does not belong to the selected program")
		}
		schoolID = &group.SchoolID
		if programID == nil {
			programID = group.ProgramID
		}
	}

	student.City = strings.TrimSpace(req.City)
	student.Department = strings.TrimSpace(req.Department)
	student.Address = strings.TrimSpace(req.Address)
	student.GuardianInfo = models.GuardianInfo{
		DocType:         strings.TrimSpace(req.Guardian.DocType),
		Document:        strings.TrimSpace(req.Guardian.Document),
		ExpeditionPlace: strings.TrimSpace(req.Guardian.ExpeditionPlace),
		FirstNames:      strings.TrimSpace(req.Guardian.FirstNames),
		LastNames:       strings.TrimSpace(req.Guardian.LastNames),
		Address:         strings.TrimSpace(req.Guardian.Address),
		Phone:           strings.TrimSpace(req.Guardian.Phone),
		Email:           strings.TrimSpace(req.Guardian.Email),
	}
	student.SchoolID = schoolID
	student.GroupID = req.GroupID
	student.ProgramID = programID
	student.ProfileComplete = student.IsComplete()

	if err := s.students.UpdateProfile(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to update profile")
	}
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionProfileUpdate, models.AuditResourceStudent, student.ID, before, student)
	if before.SchoolID == nil || schoolID == nil || *before.SchoolID != *schoolID {
		s.invalidateSummary(ctx)
	}
	return student, nil
}

// UpdateDocumentType lets staff correct a student's identification type.
// Requirements are recomputed on the next check.
func (s *EnrollmentService) UpdateDocumentType(ctx context.Context, actor models.Actor, studentID, raw string) (*models.StudentProfile, error) {
	if _, ok := actor.Tier(); !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can change the document type")
	}
	docType, ok := models.ParseDocumentType(raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", raw))
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !actor.Scope.CoversStudent(student.ID, student.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is outside your scope")
	}
	previous := student.DocumentType
	if previous == docType {
		return student, nil
	}
	if err := s.students.UpdateDocumentType(ctx, student.ID, docType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to update document type")
	}
	student.DocumentType = docType
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentTypeEdit, models.AuditResourceStudent, student.ID,
		map[string]models.DocumentType{"document_type": previous},
		map[string]models.DocumentType{"document_type": docType})
	return student, nil
}

// Submit hands the calling student's enrollment to staff once every required kind is uploaded.
func (s *EnrollmentService) Submit(ctx context.Context, actor models.Actor) (*models.Enrollment, error) {
	studentID, err := ownStudentID(actor)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.Initialize(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	var from models.EnrollmentState
	updated, err := s.repo.Transition(ctx, enrollment.ID, func(snapshot *models.EnrollmentSnapshot) (bool, error) {
		from = snapshot.Enrollment.State
		status := s.resolver.Check(snapshot)
		if !status.AllPresent() {
			return false, appErrors.Clone(appErrors.ErrIncompleteDocuments, "missing documents: "+kindLabels(status.Missing))
		}
		now := s.now()
		snapshot.Enrollment.State = models.EnrollmentStateSubmitted
		snapshot.Enrollment.SubmittedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, transitionError(err, "failed to submit enrollment")
	}
	s.afterTransition(ctx, actor, models.AuditActionEnrollmentSubmit, from, updated, "submit")
	return updated, nil
}

// SetState applies a manual validation by the given tier. Any state may be
// targeted; the tier stamp is always recorded.
func (s *EnrollmentService) SetState(ctx context.Context, actor models.Actor, enrollmentID string, target models.EnrollmentState, tier models.Tier, remark string) (*models.Enrollment, error) {
	if err := authorizeTier(actor, tier); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("unknown enrollment state %q", target))
	}
	remark = strings.TrimSpace(remark)

	var from models.EnrollmentState
	updated, err := s.repo.Transition(ctx, enrollmentID, func(snapshot *models.EnrollmentSnapshot) (bool, error) {
		if !actor.Scope.CoversStudent(snapshot.Student.ID, snapshot.Student.SchoolID) {
			return false, appErrors.Clone(appErrors.ErrForbidden, "enrollment is outside your scope")
		}
		from = snapshot.Enrollment.State
		now := s.now()
		snapshot.Enrollment.State = target
		snapshot.Enrollment.Stamp(tier, actor.UserID, now, remark)
		if target == models.EnrollmentStateComplete && snapshot.Enrollment.ValidatedAt == nil {
			snapshot.Enrollment.ValidatedAt = &now
		}
		return true, nil
	})
	if err != nil {
		return nil, transitionError(err, "failed to change enrollment state")
	}
	s.afterTransition(ctx, actor, models.AuditActionEnrollmentState, from, updated, "manual")
	return updated, nil
}

// PromoteIfSatisfied moves an enrollment to PRE_ENROLLED when every required
// document is present and approved. It reports whether a promotion happened.
// Callers run it after the review that triggered it has committed.
func (s *EnrollmentService) PromoteIfSatisfied(ctx context.Context, actor models.Actor, enrollmentID string, tier models.Tier) (*models.Enrollment, bool, error) {
	var from models.EnrollmentState
	var promoted bool
	updated, err := s.repo.Transition(ctx, enrollmentID, func(snapshot *models.EnrollmentSnapshot) (bool, error) {
		from = snapshot.Enrollment.State
		if !from.Promotable() {
			return false, nil
		}
		if !s.resolver.Check(snapshot).Satisfied() {
			return false, nil
		}
		snapshot.Enrollment.State = models.EnrollmentStatePreEnrolled
		snapshot.Enrollment.Stamp(tier, actor.UserID, s.now(), "all required documents approved")
		promoted = true
		return true, nil
	})
	if err != nil {
		return nil, false, transitionError(err, "failed to evaluate promotion")
	}
	if promoted {
		s.logger.Info("enrollment promoted", zap.String("enrollment_id", enrollmentID), zap.String("from", string(from)))
		s.afterTransition(ctx, actor, models.AuditActionEnrollmentPromote, from, updated, "promotion")
	}
	return updated, promoted, nil
}

// Finalize moves a PRE_ENROLLED enrollment to ENROLLED after re-checking its documents.
func (s *EnrollmentService) Finalize(ctx context.Context, actor models.Actor, enrollmentID string) (*models.Enrollment, error) {
	if err := authorizeTier(actor, models.TierAdmin); err != nil {
		return nil, err
	}
	var from models.EnrollmentState
	updated, err := s.repo.Transition(ctx, enrollmentID, func(snapshot *models.EnrollmentSnapshot) (bool, error) {
		from = snapshot.Enrollment.State
		if from != models.EnrollmentStatePreEnrolled {
			return false, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("only PRE_ENROLLED enrollments can be finalized, current state is %s", from))
		}
		status := s.resolver.Check(snapshot)
		if !status.Satisfied() {
			return false, appErrors.Clone(appErrors.ErrRequirementsNotMet, requirementsReason(status))
		}
		snapshot.Enrollment.State = models.EnrollmentStateEnrolled
		snapshot.Enrollment.Stamp(models.TierAdmin, actor.UserID, s.now(), "final enrollment")
		return true, nil
	})
	if err != nil {
		return nil, transitionError(err, "failed to finalize enrollment")
	}
	s.afterTransition(ctx, actor, models.AuditActionEnrollmentFinal, from, updated, "finalize")
	return updated, nil
}

// BulkFinalize finalizes every PRE_ENROLLED enrollment, each in its own
// transaction, and reports per-record failures without aborting the batch.
func (s *EnrollmentService) BulkFinalize(ctx context.Context, actor models.Actor) (*models.BulkResult, error) {
	if err := authorizeTier(actor, models.TierAdmin); err != nil {
		return nil, err
	}
	ids, err := s.repo.ListIDsByState(ctx, models.EnrollmentStatePreEnrolled)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pre-enrolled enrollments")
	}
	result := &models.BulkResult{Succeeded: []string{}, Failed: []models.BulkFailure{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, appErrors.Internal(err, "bulk finalize interrupted")
		}
		if _, err := s.Finalize(ctx, actor, id); err != nil {
			appErr := appErrors.FromError(err)
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Code: appErr.Code, Reason: appErr.Message})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	s.metrics.RecordBulkFinalize(len(result.Succeeded), len(result.Failed))
	s.logger.Info("bulk finalize completed",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *EnrollmentService) buildDetail(ctx context.Context, enrollment *models.Enrollment, student *models.StudentProfile) (*dto.EnrollmentDetail, error) {
	docs, err := s.documents.ListActive(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load documents")
	}
	required := s.resolver.RequiredFor(student)
	status := s.resolver.Evaluate(required, docs)
	kinds := make([]dto.RequiredKind, 0, len(required))
	for _, kind := range required {
		kinds = append(kinds, dto.RequiredKind{Kind: kind, Label: kind.Label()})
	}
	return &dto.EnrollmentDetail{
		Enrollment:           enrollment,
		Student:              student,
		Documents:            dto.NewDocumentResponses(docs),
		RequiredKinds:        kinds,
		Missing:              status.Missing,
		Unapproved:           status.Unapproved,
		AllPresent:           status.AllPresent(),
		Satisfied:            status.Satisfied(),
		TeacherValidation:    enrollment.StampOf(models.TierTeacher),
		AdminValidation:      enrollment.StampOf(models.TierAdmin),
		OutdatedDocumentType: student.OutdatedDocumentType(s.now()),
	}, nil
}

func (s *EnrollmentService) loadStudent(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	return student, nil
}

func (s *EnrollmentService) afterTransition(ctx context.Context, actor models.Actor, action string, from models.EnrollmentState, updated *models.Enrollment, trigger string) {
	s.metrics.RecordTransition(from, updated.State, trigger)
	writeAudit(ctx, s.audit, s.logger, actor, action, models.AuditResourceEnrollment, updated.ID,
		map[string]models.EnrollmentState{"state": from},
		updated)
	s.invalidateSummary(ctx)
}

func (s *EnrollmentService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, summaryCachePrefix+"*")
}

func summaryCacheKey(actor models.Actor, schoolID string) string {
	scope := "all"
	switch {
	case actor.Scope.All:
	case actor.Scope.StudentID != "":
		scope = "student:" + actor.Scope.StudentID
	default:
		scope = "user:" + actor.UserID
	}
	if schoolID == "" {
		schoolID = "any"
	}
	return summaryCachePrefix + scope + ":" + schoolID
}

func ownStudentID(actor models.Actor) (string, error) {
	if actor.Role != models.RoleStudent || actor.Scope.StudentID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only students can act on their own enrollment")
	}
	return actor.Scope.StudentID, nil
}

// authorizeTier checks that the actor may act under tier. Admins may also act as teachers.
func authorizeTier(actor models.Actor, tier models.Tier) error {
	if !tier.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown validation tier %q", tier))
	}
	own, ok := actor.Tier()
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff can validate enrollments")
	}
	if tier == models.TierAdmin && own != models.TierAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}
	return nil
}

func transitionError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

func kindLabels(kinds []models.DocumentKind) string {
	labels := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		labels = append(labels, kind.Label())
	}
	return strings.Join(labels, ", ")
}

func requirementsReason(status RequirementStatus) string {
	var parts []string
	if len(status.Missing) > 0 {
		parts = append(parts, "missing: "+kindLabels(status.Missing))
	}
	if len(status.Unapproved) > 0 {
		parts = append(parts, "not approved: "+kindLabels(status.Unapproved))
	}
	return strings.Join(parts, "; ")
}
