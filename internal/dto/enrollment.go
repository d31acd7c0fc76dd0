package dto

import (
	"time"

	"github.com/noah-isme/articulacion-api/internal/models"
)

// GuardianRequest carries the guardian block of a profile update.
type GuardianRequest struct {
	DocType         string `json:"doc_type" validate:"omitempty,max=10"`
	Document        string `json:"document" validate:"omitempty,max=30"`
	ExpeditionPlace string `json:"expedition_place" validate:"omitempty,max=120"`
	FirstNames      string `json:"first_names" validate:"omitempty,max=120"`
	LastNames       string `json:"last_names" validate:"omitempty,max=120"`
	Address         string `json:"address" validate:"omitempty,max=255"`
	Phone           string `json:"phone" validate:"omitempty,max=30"`
	Email           string `json:"email" validate:"omitempty,email"`
}

// ProfileUpdateRequest replaces the student-editable profile fields.
type ProfileUpdateRequest struct {
	City       string          `json:"city" validate:"omitempty,max=120"`
	Department string          `json:"department" validate:"omitempty,max=120"`
	Address    string          `json:"address" validate:"omitempty,max=255"`
	Guardian   GuardianRequest `json:"guardian"`
	SchoolID   *string         `json:"school_id,omitempty"`
	GroupID    *string         `json:"group_id,omitempty"`
	ProgramID  *string         `json:"program_id,omitempty"`
}

// StateChangeRequest is the manual validation payload. Tier defaults to the caller's own tier.
type StateChangeRequest struct {
	State  models.EnrollmentState `json:"state" validate:"required"`
	Tier   models.Tier            `json:"tier,omitempty"`
	Remark string                 `json:"remark" validate:"max=1000"`
}

// DocumentTypeRequest changes the student's identification type.
type DocumentTypeRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
}

// ReviewRequest approves or rejects a document.
type ReviewRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Remark  string `json:"remark" validate:"max=1000"`
}

// RequiredKind names one document the student must provide.
type RequiredKind struct {
	Kind  models.DocumentKind `json:"kind"`
	Label string              `json:"label"`
}

// DocumentResponse is a document version with its derived status.
type DocumentResponse struct {
	models.Document
	Label  string                `json:"label"`
	Status models.DocumentStatus `json:"status"`
}

// NewDocumentResponse decorates a document for output.
func NewDocumentResponse(doc models.Document) DocumentResponse {
	return DocumentResponse{Document: doc, Label: doc.Kind.Label(), Status: doc.Status()}
}

// NewDocumentResponses decorates a list of documents.
func NewDocumentResponses(docs []models.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, NewDocumentResponse(doc))
	}
	return out
}

// EnrollmentDetail is the full view of one enrollment.
type EnrollmentDetail struct {
	Enrollment           *models.Enrollment      `json:"enrollment"`
	Student              *models.StudentProfile  `json:"student"`
	Documents            []DocumentResponse      `json:"documents"`
	RequiredKinds        []RequiredKind          `json:"required_kinds"`
	Missing              []models.DocumentKind   `json:"missing"`
	Unapproved           []models.DocumentKind   `json:"unapproved"`
	AllPresent           bool                    `json:"all_present"`
	Satisfied            bool                    `json:"satisfied"`
	TeacherValidation    *models.ValidationStamp `json:"teacher_validation,omitempty"`
	AdminValidation      *models.ValidationStamp `json:"admin_validation,omitempty"`
	OutdatedDocumentType bool                    `json:"outdated_document_type"`
}

// ReviewResponse reports a review together with the resulting enrollment state.
type ReviewResponse struct {
	Document        DocumentResponse       `json:"document"`
	EnrollmentState models.EnrollmentState `json:"enrollment_state"`
	Promoted        bool                   `json:"promoted"`
}

// BulkApproveResponse reports an approve-all run.
type BulkApproveResponse struct {
	Approved        int64                  `json:"approved"`
	EnrollmentState models.EnrollmentState `json:"enrollment_state"`
	Promoted        bool                   `json:"promoted"`
}

// DownloadURLResponse carries a signed document link.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
