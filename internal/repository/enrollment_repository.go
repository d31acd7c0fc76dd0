package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/articulacion-api/internal/models"
)

const enrollmentColumns = `e.id, e.student_id, e.state, e.teacher_validator_id, e.teacher_validated_at, e.teacher_remark, e.admin_validator_id, e.admin_validated_at, e.admin_remark, e.validated_at, e.submitted_at, e.created_at, e.updated_at`

// TransitionFunc inspects a locked snapshot and mutates snapshot.Enrollment in
// place. It reports whether the enrollment changed; an error aborts the transaction.
type TransitionFunc func(snapshot *models.EnrollmentSnapshot) (bool, error)

// EnrollmentRepository persists enrollment records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Initialize creates the DRAFT record for a student when none exists and
// returns the stored record together with whether it was just created.
func (r *EnrollmentRepository) Initialize(ctx context.Context, studentID string) (*models.Enrollment, bool, error) {
	now := time.Now().UTC()
	const insert = `INSERT INTO enrollments (id, student_id, state, created_at, updated_at) VALUES ($1, $2, $3, $4, $4) ON CONFLICT (student_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, insert, uuid.NewString(), studentID, models.EnrollmentStateDraft, now)
	if err != nil {
		return nil, false, fmt.Errorf("initialize enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("initialize enrollment rows: %w", err)
	}

	enrollment, err := r.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	return enrollment, affected > 0, nil
}

// GetByStudentID returns the enrollment owned by a student.
func (r *EnrollmentRepository) GetByStudentID(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.student_id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get enrollment by student: %w", err)
	}
	return &enrollment, nil
}

// GetByID returns an enrollment by id.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

// List returns enrollments matching filter together with the total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentListItem, int, error) {
	base := ` FROM enrollments e JOIN students s ON s.id = e.student_id LEFT JOIN schools sc ON sc.id = s.school_id LEFT JOIN groups g ON g.id = s.group_id WHERE 1=1`
	conditions, args := scopeConditions(filter.Scope, nil)

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("e.state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("s.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR s.document_number LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortColumns := map[string]string{
		"created_at":   "e.created_at",
		"updated_at":   "e.updated_at",
		"submitted_at": "e.submitted_at",
		"state":        "e.state",
		"student_name": "s.full_name",
	}
	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "e.created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s, s.full_name AS student_name, s.document_type, s.document_number, s.school_id, sc.name AS school_name, s.group_id, g.name AS group_name%s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentColumns, base, sortBy, sortOrder, pageSize, offset)

	var items []models.EnrollmentListItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return items, total, nil
}

// CountByState groups visible enrollments by state, optionally for one school.
func (r *EnrollmentRepository) CountByState(ctx context.Context, scope models.AccessScope, schoolID string) (map[models.EnrollmentState]int, error) {
	query := `SELECT e.state, COUNT(*) AS total FROM enrollments e JOIN students s ON s.id = e.student_id WHERE 1=1`
	conditions, args := scopeConditions(scope, nil)
	if schoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, schoolID)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY e.state"

	var rows []struct {
		State models.EnrollmentState `db:"state"`
		Total int                    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments by state: %w", err)
	}
	counts := make(map[models.EnrollmentState]int, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Total
	}
	return counts, nil
}

// ListIDsByState returns the ids of every enrollment in state, oldest first.
func (r *EnrollmentRepository) ListIDsByState(ctx context.Context, state models.EnrollmentState) ([]string, error) {
	const query = `SELECT id FROM enrollments WHERE state = $1 ORDER BY created_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, state); err != nil {
		return nil, fmt.Errorf("list enrollments by state: %w", err)
	}
	return ids, nil
}

// ListReportRows returns the roster lines for an export.
func (r *EnrollmentRepository) ListReportRows(ctx context.Context, params models.ReportJobParams) ([]models.ReportRow, error) {
	query := `SELECT e.id AS enrollment_id, s.full_name AS student_name, s.document_type, s.document_number, sc.name AS school_name, g.name AS group_name, e.state, e.submitted_at, e.validated_at
FROM enrollments e JOIN students s ON s.id = e.student_id LEFT JOIN schools sc ON sc.id = s.school_id LEFT JOIN groups g ON g.id = s.group_id WHERE 1=1`
	var args []interface{}
	if params.SchoolID != nil {
		args = append(args, *params.SchoolID)
		query += fmt.Sprintf(" AND s.school_id = $%d", len(args))
	}
	if params.GroupID != nil {
		args = append(args, *params.GroupID)
		query += fmt.Sprintf(" AND s.group_id = $%d", len(args))
	}
	if params.State != nil {
		args = append(args, *params.State)
		query += fmt.Sprintf(" AND e.state = $%d", len(args))
	}
	query += " ORDER BY s.full_name ASC"

	var rows []models.ReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list roster rows: %w", err)
	}
	return rows, nil
}

// Transition locks the enrollment, loads the student and active documents, and
// lets decide mutate the record. Changes are written only when decide reports them.
func (r *EnrollmentRepository) Transition(ctx context.Context, id string, decide TransitionFunc) (*models.Enrollment, error) {
	var result *models.Enrollment
	err := withTx(ctx, r.db, "enrollment transition", func(tx *sqlx.Tx) error {
		var enrollment models.Enrollment
		lock := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &enrollment, lock, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock enrollment: %w", err)
		}

		var student models.StudentProfile
		if err := tx.GetContext(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE id = $1`, enrollment.StudentID); err != nil {
			return fmt.Errorf("load enrollment student: %w", err)
		}

		var docs []models.Document
		if err := tx.SelectContext(ctx, &docs, `SELECT `+documentColumns+` FROM documents WHERE enrollment_id = $1 AND superseded_by IS NULL ORDER BY kind`, id); err != nil {
			return fmt.Errorf("load active documents: %w", err)
		}

		snapshot := &models.EnrollmentSnapshot{Enrollment: &enrollment, Student: &student, ActiveDocuments: docs}
		changed, err := decide(snapshot)
		if err != nil {
			return err
		}
		result = snapshot.Enrollment
		if !changed {
			return nil
		}

		result.UpdatedAt = time.Now().UTC()
		const update = `UPDATE enrollments SET state = $2, teacher_validator_id = $3, teacher_validated_at = $4, teacher_remark = $5, admin_validator_id = $6, admin_validated_at = $7, admin_remark = $8, validated_at = $9, submitted_at = $10, updated_at = $11 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, result.ID, result.State,
			result.TeacherValidatorID, result.TeacherValidatedAt, result.TeacherRemark,
			result.AdminValidatorID, result.AdminValidatedAt, result.AdminRemark,
			result.ValidatedAt, result.SubmittedAt, result.UpdatedAt); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scopeConditions turns an access scope into SQL predicates over students s.
func scopeConditions(scope models.AccessScope, args []interface{}) ([]string, []interface{}) {
	if scope.All {
		return nil, args
	}
	var parts []string
	if len(scope.SchoolIDs) > 0 {
		args = append(args, pq.Array(scope.SchoolIDs))
		parts = append(parts, fmt.Sprintf("s.school_id = ANY($%d)", len(args)))
	}
	if scope.StudentID != "" {
		args = append(args, scope.StudentID)
		parts = append(parts, fmt.Sprintf("s.id = $%d", len(args)))
	}
	if len(parts) == 0 {
		return []string{"1=0"}, args
	}
	return []string{"(" + strings.Join(parts, " OR ") + ")"}, args
}
