package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/articulacion-api/internal/models"
)

// SchoolRepository answers school lookups used for access scoping.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// ListIDsByLiaison returns the active schools where the teacher is the liaison.
func (r *SchoolRepository) ListIDsByLiaison(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT id FROM schools WHERE liaison_teacher_id = $1 AND active = TRUE ORDER BY name`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list liaison schools: %w", err)
	}
	return ids, nil
}

// GetGroup returns a group by id.
func (r *SchoolRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, school_id, program_id, shift, academic_year, active FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &group, nil
}
