package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

const (
	defaultAuditPageSize = 25
	maxAuditPageSize     = 200
)

// AdminAuditHandler exposes the audit trail of report reviews and deletions.
type AdminAuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAdminAuditHandler constructs the handler.
func NewAdminAuditHandler(service service.AuditService, logger zerolog.Logger) *AdminAuditHandler {
	return &AdminAuditHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_audit_handler").Logger(),
	}
}

// Register attaches audit routes to the router group.
func (h *AdminAuditHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AdminAuditHandler) list(c *fiber.Ctx) error {
	req, err := auditRequestFromQuery(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "invalid audit query")
	}

	response, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list audit entries")
	}

	return utils.SendSuccess(c, "audit entries", response)
}

func auditRequestFromQuery(c *fiber.Ctx) (dto.AuditListRequest, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return dto.AuditListRequest{}, apperror.Validationf("invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return dto.AuditListRequest{}, apperror.Validationf("invalid page_size")
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultAuditPageSize
	case pageSize > maxAuditPageSize:
		pageSize = maxAuditPageSize
	}

	req := dto.AuditListRequest{
		Page:     max(page, 1),
		PageSize: pageSize,
		Action:   c.Query("action"),
		ReportID: c.Query("report_id"),
	}
	if req.ActorID, err = parseQueryUintPtr(c, "actor_id"); err != nil {
		return req, err
	}
	if req.StudentID, err = parseQueryUintPtr(c, "student_id"); err != nil {
		return req, err
	}
	if req.Since, err = parseQueryTime(c, "since"); err != nil {
		return req, err
	}
	if req.Until, err = parseQueryTime(c, "until"); err != nil {
		return req, err
	}

	return req, nil
}

// parseQueryTime accepts RFC 3339 timestamps or plain dates, read as UTC midnight.
func parseQueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, apperror.Validationf("invalid %s", key)
}
