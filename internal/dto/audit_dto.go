package dto

import (
	"time"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AuditListRequest filters the audit trail.
type AuditListRequest struct {
	Page      int
	PageSize  int
	ActorID   *uint
	StudentID *uint
	Action    string
	ReportID  string
	Since     *time.Time
	Until     *time.Time
}

// AuditEntryResponse serializes one audit entry.
type AuditEntryResponse struct {
	ID            uint                   `json:"id"`
	ActorID       uint                   `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	ReportID      string                 `json:"report_id"`
	StudentID     uint                   `json:"student_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Details       map[string]interface{} `json:"details"`
	CreatedAt     time.Time              `json:"created_at"`
}

// AuditListResponse wraps a page of audit entries.
type AuditListResponse struct {
	Items      []AuditEntryResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAuditEntryResponse converts a model into its response form.
func NewAuditEntryResponse(entry models.AuditEntry) AuditEntryResponse {
	details := map[string]interface{}{}
	for key, value := range entry.Details {
		details[key] = value
	}

	return AuditEntryResponse{
		ID:            entry.ID,
		ActorID:       entry.ActorID,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		ReportID:      entry.ReportID,
		StudentID:     entry.StudentID,
		CorrelationID: entry.CorrelationID,
		Details:       details,
		CreatedAt:     entry.CreatedAt,
	}
}
