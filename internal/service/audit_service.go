package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// Actor is the caller identity supplied by the authentication layer.
type Actor struct {
	ID   uint
	Role string
}

// Audit actions written by the report services.
const (
	AuditReportApproved = "report.approved"
	AuditReportRejected = "report.rejected"
	AuditReportDeleted  = "report.deleted"
)

// AuditEntry is one administrative action to persist.
type AuditEntry struct {
	Actor     Actor
	Action    string
	ReportID  string
	StudentID uint
	Details   map[string]interface{}
}

// AuditRecorder appends to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditService records and lists audit entries.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo   repository.AuditRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) error {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	if action == "" {
		return apperror.Validationf("audit action is required")
	}

	model := models.AuditEntry{
		ActorID:       entry.Actor.ID,
		ActorRole:     normalizeRole(entry.Actor.Role),
		Action:        action,
		ReportID:      strings.TrimSpace(entry.ReportID),
		StudentID:     entry.StudentID,
		CorrelationID: observability.CorrelationFromContext(ctx),
		Details:       redactDetails(entry.Details),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", action).Str("report_id", model.ReportID).Msg("failed to persist audit entry")
		return storeError(err)
	}
	return nil
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	if req.Since != nil && req.Until != nil && !req.Since.Before(*req.Until) {
		return dto.AuditListResponse{}, apperror.Validationf("since must be before until")
	}

	entries, total, err := s.repo.List(ctx, repository.AuditFilter{
		Page:      req.Page,
		PageSize:  req.PageSize,
		ActorID:   req.ActorID,
		StudentID: req.StudentID,
		Action:    strings.ToLower(strings.TrimSpace(req.Action)),
		ReportID:  strings.TrimSpace(req.ReportID),
		Since:     req.Since,
		Until:     req.Until,
	})
	if err != nil {
		return dto.AuditListResponse{}, storeError(err)
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewAuditEntryResponse(entry))
	}

	page := max(req.Page, 1)
	totalPages := 1
	if req.PageSize > 0 {
		totalPages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}

	return dto.AuditListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   req.PageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

// redactDetails masks contact details and credentials that callers may attach.
func redactDetails(details map[string]interface{}) datatypes.JSONMap {
	redacted := datatypes.JSONMap{}
	for key, value := range details {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "phone") || strings.Contains(lower, "token") {
			redacted[key] = "***"
			continue
		}
		redacted[key] = value
	}
	return redacted
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
