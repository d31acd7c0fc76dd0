package dto

import "github.com/noah-isme/articulacion-api/internal/models"

// ReportRequest captures the POST /reports payload.
type ReportRequest struct {
	Type     models.ReportType       `json:"type" validate:"required"`
	Format   models.ReportFormat     `json:"format" validate:"required"`
	SchoolID *string                 `json:"school_id,omitempty"`
	GroupID  *string                 `json:"group_id,omitempty"`
	State    *models.EnrollmentState `json:"state,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Type     models.ReportType   `json:"type"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
