package service

import (
	"time"

	"github.com/noah-isme/articulacion-api/internal/models"
)

var adultTrackKinds = []models.DocumentKind{
	models.DocumentKindIdentity,
	models.DocumentKindHealthAffiliation,
	models.DocumentKindTrainingSystem,
	models.DocumentKindApprenticeship,
	models.DocumentKindApprenticeCommitment,
}

var minorTrackKinds = []models.DocumentKind{
	models.DocumentKindIdentity,
	models.DocumentKindBirthCertificate,
	models.DocumentKindHealthAffiliation,
	models.DocumentKindTrainingSystem,
	models.DocumentKindApprenticeship,
	models.DocumentKindGuardianID,
	models.DocumentKindDataConsent,
	models.DocumentKindApprenticeCommitment,
}

// RequirementStatus describes how an active document set measures against a requirement set.
type RequirementStatus struct {
	Required   []models.DocumentKind `json:"required"`
	Missing    []models.DocumentKind `json:"missing"`
	Unapproved []models.DocumentKind `json:"unapproved"`
}

// AllPresent reports whether every required kind has an active document.
func (s RequirementStatus) AllPresent() bool {
	return len(s.Missing) == 0
}

// Satisfied reports whether every required kind is present and approved.
func (s RequirementStatus) Satisfied() bool {
	return len(s.Missing) == 0 && len(s.Unapproved) == 0
}

// RequirementResolver computes the documents a student must provide.
type RequirementResolver struct {
	adultCapable map[models.DocumentType]struct{}
	now          func() time.Time
}

// NewRequirementResolver builds a resolver. An empty list falls back to CC.
func NewRequirementResolver(adultCapable []string) *RequirementResolver {
	set := make(map[models.DocumentType]struct{})
	for _, raw := range adultCapable {
		if t, ok := models.ParseDocumentType(raw); ok {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		set[models.DocumentTypeCC] = struct{}{}
	}
	return &RequirementResolver{adultCapable: set, now: time.Now}
}

// Required returns the ordered kinds required for an ID type and adult flag.
func (r *RequirementResolver) Required(docType models.DocumentType, isAdult bool) []models.DocumentKind {
	source := minorTrackKinds
	if _, ok := r.adultCapable[docType]; ok && isAdult {
		source = adultTrackKinds
	}
	out := make([]models.DocumentKind, len(source))
	copy(out, source)
	return out
}

// RequiredFor evaluates the student's age at the current time.
func (r *RequirementResolver) RequiredFor(student *models.StudentProfile) []models.DocumentKind {
	if student == nil {
		return r.Required("", false)
	}
	return r.Required(student.DocumentType, student.IsAdult(r.now()))
}

// Evaluate compares active documents against required kinds. Active documents
// of kinds outside the requirement set must still be approved.
func (r *RequirementResolver) Evaluate(required []models.DocumentKind, active []models.Document) RequirementStatus {
	byKind := make(map[models.DocumentKind]*models.Document, len(active))
	status := RequirementStatus{
		Required:   required,
		Missing:    []models.DocumentKind{},
		Unapproved: []models.DocumentKind{},
	}
	for i := range active {
		doc := &active[i]
		if !doc.Active() {
			continue
		}
		byKind[doc.Kind] = doc
		if !doc.IsApproved() {
			status.Unapproved = append(status.Unapproved, doc.Kind)
		}
	}
	for _, kind := range required {
		if _, ok := byKind[kind]; !ok {
			status.Missing = append(status.Missing, kind)
		}
	}
	return status
}

// Check resolves the requirements for a snapshot and evaluates its documents.
func (r *RequirementResolver) Check(snapshot *models.EnrollmentSnapshot) RequirementStatus {
	return r.Evaluate(r.RequiredFor(snapshot.Student), snapshot.ActiveDocuments)
}
