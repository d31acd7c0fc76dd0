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

const simatColumns = `id, scope, school_id, group_id, uploaded_by, file_name, file_path, size_bytes, extension, status, remark, reviewed_by, reviewed_at, created_at, updated_at`

// SimatRepository stores SIMAT filings.
type SimatRepository struct {
	db *sqlx.DB
}

// NewSimatRepository constructs a SimatRepository.
func NewSimatRepository(db *sqlx.DB) *SimatRepository {
	return &SimatRepository{db: db}
}

// Create inserts a filing in PENDING status.
func (r *SimatRepository) Create(ctx context.Context, filing *models.SimatFiling) error {
	if filing.ID == "" {
		filing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if filing.CreatedAt.IsZero() {
		filing.CreatedAt = now
	}
	filing.UpdatedAt = filing.CreatedAt
	filing.Status = models.SimatStatusPending
	const query = `INSERT INTO simat_filings (id, scope, school_id, group_id, uploaded_by, file_name, file_path, size_bytes, extension, status, created_at, updated_at)
VALUES (:id, :scope, :school_id, :group_id, :uploaded_by, :file_name, :file_path, :size_bytes, :extension, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, filing); err != nil {
		return fmt.Errorf("create simat filing: %w", err)
	}
	return nil
}

// GetByID returns one filing.
func (r *SimatRepository) GetByID(ctx context.Context, id string) (*models.SimatFiling, error) {
	var filing models.SimatFiling
	if err := r.db.GetContext(ctx, &filing, `SELECT `+simatColumns+` FROM simat_filings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get simat filing: %w", err)
	}
	return &filing, nil
}

// List returns the filings visible to the filter scope, newest first.
func (r *SimatRepository) List(ctx context.Context, filter models.SimatFilter) ([]models.SimatFiling, error) {
	conditions, args := simatScope(filter.Scope)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	query := `SELECT ` + simatColumns + ` FROM simat_filings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var filings []models.SimatFiling
	if err := r.db.SelectContext(ctx, &filings, query, args...); err != nil {
		return nil, fmt.Errorf("list simat filings: %w", err)
	}
	return filings, nil
}

// CountByStatus groups the visible filings by status.
func (r *SimatRepository) CountByStatus(ctx context.Context, scope models.AccessScope) (map[models.SimatStatus]int, error) {
	conditions, args := simatScope(scope)
	query := `SELECT status, COUNT(*) AS total FROM simat_filings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY status"

	var rows []struct {
		Status models.SimatStatus `db:"status"`
		Total  int                `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count simat filings: %w", err)
	}
	counts := make(map[models.SimatStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Review records the administrator's verdict. It returns sql.ErrNoRows when
// the filing does not exist.
func (r *SimatRepository) Review(ctx context.Context, id string, status models.SimatStatus, reviewerID string, remark *string, at time.Time) error {
	const query = `UPDATE simat_filings SET status = $2, reviewed_by = $3, reviewed_at = $4, remark = $5, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, reviewerID, at, remark)
	if err != nil {
		return fmt.Errorf("review simat filing: %w", err)
	}
	return requireAffected(res)
}

// simatScope restricts filings to the schools an actor may see.
func simatScope(scope models.AccessScope) ([]string, []interface{}) {
	if scope.All {
		return nil, nil
	}
	if len(scope.SchoolIDs) == 0 {
		return []string{"1=0"}, nil
	}
	return []string{"school_id = ANY($1)"}, []interface{}{pq.Array(scope.SchoolIDs)}
}
