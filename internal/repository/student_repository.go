package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/articulacion-api/internal/models"
)

const studentColumns = `id, user_id, full_name, document_type, document_number, birth_date, city, department, address, guardian_doc_type, guardian_document, guardian_expedition_place, guardian_first_names, guardian_last_names, guardian_address, guardian_phone, guardian_email, school_id, group_id, program_id, profile_complete, created_at, updated_at`

// StudentRepository reads and updates student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student profile by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	return r.findOne(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
}

// FindByUserID returns the profile linked to a login account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return r.findOne(ctx, `SELECT `+studentColumns+` FROM students WHERE user_id = $1`, userID)
}

func (r *StudentRepository) findOne(ctx context.Context, query string, arg string) (*models.StudentProfile, error) {
	var student models.StudentProfile
	if err := r.db.GetContext(ctx, &student, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// UpdateProfile stores the residence, guardian and placement fields.
func (r *StudentRepository) UpdateProfile(ctx context.Context, student *models.StudentProfile) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET city = :city, department = :department, address = :address,
guardian_doc_type = :guardian_doc_type, guardian_document = :guardian_document, guardian_expedition_place = :guardian_expedition_place,
guardian_first_names = :guardian_first_names, guardian_last_names = :guardian_last_names, guardian_address = :guardian_address,
guardian_phone = :guardian_phone, guardian_email = :guardian_email, school_id = :school_id, group_id = :group_id, program_id = :program_id,
profile_complete = :profile_complete, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student profile: %w", err)
	}
	return requireAffected(res)
}

// UpdateDocumentType changes the identification type of a student.
func (r *StudentRepository) UpdateDocumentType(ctx context.Context, id string, docType models.DocumentType) error {
	const query = `UPDATE students SET document_type = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, docType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student document type: %w", err)
	}
	return requireAffected(res)
}

// requireAffected maps an update that touched no rows to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
