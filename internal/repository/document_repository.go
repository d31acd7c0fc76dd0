package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/articulacion-api/internal/models"
)

const documentColumns = `id, enrollment_id, kind, version, file_name, file_path, size_bytes, extension, approved, reviewed_by, reviewed_at, remark, superseded_by, created_at`

// VersionGuard inspects the active version (nil when none) before a new one is appended.
type VersionGuard func(current *models.Document) error

// DocumentRepository stores document versions and their review outcome.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByID returns one document version.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// ListActive returns the non-superseded documents of an enrollment.
func (r *DocumentRepository) ListActive(ctx context.Context, enrollmentID string) ([]models.Document, error) {
	var docs []models.Document
	query := `SELECT ` + documentColumns + ` FROM documents WHERE enrollment_id = $1 AND superseded_by IS NULL ORDER BY kind`
	if err := r.db.SelectContext(ctx, &docs, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list active documents: %w", err)
	}
	return docs, nil
}

// ListVersions returns every version of a kind, oldest first.
func (r *DocumentRepository) ListVersions(ctx context.Context, enrollmentID string, kind models.DocumentKind) ([]models.Document, error) {
	var docs []models.Document
	query := `SELECT ` + documentColumns + ` FROM documents WHERE enrollment_id = $1 AND kind = $2 ORDER BY version ASC`
	if err := r.db.SelectContext(ctx, &docs, query, enrollmentID, kind); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return docs, nil
}

// AppendVersion inserts doc as the new active version of its kind. The current
// active version, if any, is pointed at the new row in the same transaction.
// The enrollment row is locked so concurrent uploads of one enrollment serialize.
func (r *DocumentRepository) AppendVersion(ctx context.Context, doc *models.Document, guard VersionGuard) error {
	return withTx(ctx, r.db, "document version", func(tx *sqlx.Tx) error {
		var enrollmentID string
		if err := tx.GetContext(ctx, &enrollmentID, `SELECT id FROM enrollments WHERE id = $1 FOR UPDATE`, doc.EnrollmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock enrollment: %w", err)
		}

		var current *models.Document
		var existing models.Document
		lockActive := `SELECT ` + documentColumns + ` FROM documents WHERE enrollment_id = $1 AND kind = $2 AND superseded_by IS NULL FOR UPDATE`
		switch err := tx.GetContext(ctx, &existing, lockActive, doc.EnrollmentID, doc.Kind); {
		case err == nil:
			current = &existing
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("lock active document: %w", err)
		}

		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}

		var version int
		if err := tx.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE enrollment_id = $1 AND kind = $2`, doc.EnrollmentID, doc.Kind); err != nil {
			return fmt.Errorf("next document version: %w", err)
		}

		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.Version = version
		doc.Approved = nil
		doc.ReviewedBy = nil
		doc.ReviewedAt = nil
		doc.Remark = nil
		doc.SupersededBy = nil
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}

		// the superseded_by foreign key is deferred, so the old row may point at
		// the new id before it exists; the unique active index requires this order
		if current != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE documents SET superseded_by = $2 WHERE id = $1`, current.ID, doc.ID); err != nil {
				return fmt.Errorf("supersede document: %w", err)
			}
		}

		const insert = `INSERT INTO documents (id, enrollment_id, kind, version, file_name, file_path, size_bytes, extension, approved, reviewed_by, reviewed_at, remark, superseded_by, created_at)
VALUES (:id, :enrollment_id, :kind, :version, :file_name, :file_path, :size_bytes, :extension, :approved, :reviewed_by, :reviewed_at, :remark, :superseded_by, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, doc); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return nil
	})
}

// Review applies a review outcome to an active document. It returns
// sql.ErrNoRows when the document is missing or already superseded.
func (r *DocumentRepository) Review(ctx context.Context, id string, review models.DocumentReview) error {
	var remark *string
	if review.Remark != "" {
		remark = &review.Remark
	}
	const query = `UPDATE documents SET approved = $2, reviewed_by = $3, reviewed_at = $4, remark = $5 WHERE id = $1 AND superseded_by IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, review.Approve, review.ReviewerID, review.ReviewedAt, remark)
	if err != nil {
		return fmt.Errorf("review document: %w", err)
	}
	return requireAffected(res)
}

// ApproveAllPending approves every active, not yet reviewed document of an enrollment.
func (r *DocumentRepository) ApproveAllPending(ctx context.Context, enrollmentID, reviewerID string, at time.Time) (int64, error) {
	const query = `UPDATE documents SET approved = TRUE, reviewed_by = $2, reviewed_at = $3, remark = NULL WHERE enrollment_id = $1 AND superseded_by IS NULL AND approved IS NULL`
	res, err := r.db.ExecContext(ctx, query, enrollmentID, reviewerID, at)
	if err != nil {
		return 0, fmt.Errorf("approve pending documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("approve pending documents rows: %w", err)
	}
	return affected, nil
}

// Purge deletes a document version and splices its chain: predecessors that
// pointed at it now point at its successor, or become active when it was active.
// Like AppendVersion it locks the owning enrollment before the document row.
func (r *DocumentRepository) Purge(ctx context.Context, id string) (*models.Document, error) {
	var purged models.Document
	err := withTx(ctx, r.db, "document purge", func(tx *sqlx.Tx) error {
		var enrollmentID string
		if err := tx.GetContext(ctx, &enrollmentID, `SELECT enrollment_id FROM documents WHERE id = $1`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("find document enrollment: %w", err)
		}
		if err := tx.GetContext(ctx, &enrollmentID, `SELECT id FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentID); err != nil {
			return fmt.Errorf("lock enrollment: %w", err)
		}
		if err := tx.GetContext(ctx, &purged, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET superseded_by = $2 WHERE superseded_by = $1`, id, purged.SupersededBy); err != nil {
			return fmt.Errorf("splice document chain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &purged, nil
}

// ListBundleEntries returns the active documents of every student in a group.
func (r *DocumentRepository) ListBundleEntries(ctx context.Context, groupID string) ([]models.BundleEntry, error) {
	const query = `SELECT d.id AS document_id, s.full_name AS student_name, s.document_number, d.kind, d.file_path, d.extension
FROM documents d JOIN enrollments e ON e.id = d.enrollment_id JOIN students s ON s.id = e.student_id
WHERE s.group_id = $1 AND d.superseded_by IS NULL ORDER BY s.full_name, d.kind`
	var entries []models.BundleEntry
	if err := r.db.SelectContext(ctx, &entries, query, groupID); err != nil {
		return nil, fmt.Errorf("list bundle entries: %w", err)
	}
	return entries, nil
}
