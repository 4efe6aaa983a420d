package handler

import (
	"errors"
	"html"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// textPolicy strips markup from free text typed by teachers and administrators.
var textPolicy = bluemonday.StrictPolicy()

// sanitizeText removes tags and keeps the remaining text as typed.
func sanitizeText(value string) string {
	return html.UnescapeString(textPolicy.Sanitize(value))
}

func sanitizeTextPtr(value *string) *string {
	if value == nil {
		return nil
	}
	sanitized := sanitizeText(*value)
	return &sanitized
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseQueryUintPtr(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return nil, apperror.Validationf("invalid %s", key)
	}
	id := uint(parsed)
	return &id, nil
}

// reportFilterFromQuery reads the shared report filter query parameters.
func reportFilterFromQuery(c *fiber.Ctx) (repository.ReportFilter, error) {
	var filter repository.ReportFilter

	if year := strings.TrimSpace(c.Query("academic_year")); year != "" {
		filter.AcademicYear = &year
	}
	if raw := strings.TrimSpace(c.Query("term")); raw != "" {
		term, err := strconv.Atoi(raw)
		if err != nil || term < 1 || term > 3 {
			return filter, apperror.Validationf("invalid term")
		}
		filter.Term = &term
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := models.ParseReportStatus(raw)
		if err != nil {
			return filter, apperror.Validation(err)
		}
		filter.Status = &status
	}

	var err error
	if filter.SubjectID, err = parseQueryUintPtr(c, "subject_id"); err != nil {
		return filter, err
	}
	if filter.TeacherID, err = parseQueryUintPtr(c, "teacher_id"); err != nil {
		return filter, err
	}
	if filter.ClassID, err = parseQueryUintPtr(c, "class_id"); err != nil {
		return filter, err
	}
	if filter.StudentID, err = parseQueryUintPtr(c, "student_id"); err != nil {
		return filter, err
	}

	return filter, nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// sendServiceError maps error kinds onto HTTP statuses. The kind is echoed in
// the envelope.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	kind := apperror.Kind(err)

	var duplicate *apperror.DuplicateError
	switch {
	case errors.As(err, &duplicate):
		return utils.SendFailure(c, fiber.StatusConflict, kind, duplicate.Error(), fiber.Map{
			"existing_id":  duplicate.ExistingID,
			"can_resubmit": duplicate.CanResubmit,
		})
	case errors.Is(err, apperror.ErrValidation):
		return utils.SendFailure(c, fiber.StatusBadRequest, kind, err.Error(), nil)
	case errors.Is(err, apperror.ErrConflict):
		return utils.SendFailure(c, fiber.StatusConflict, kind, err.Error(), nil)
	case errors.Is(err, apperror.ErrNotFound):
		return utils.SendFailure(c, fiber.StatusNotFound, kind, "report not found", nil)
	case errors.Is(err, apperror.ErrPermission):
		return utils.SendFailure(c, fiber.StatusForbidden, kind, "insufficient permissions", nil)
	case errors.Is(err, apperror.ErrTransient):
		requestLogger(logger, c).Warn().Err(err).Msg(fallback)
		return utils.SendFailure(c, fiber.StatusServiceUnavailable, kind, "report store temporarily unavailable", nil)
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendFailure(c, fiber.StatusInternalServerError, kind, fallback, nil)
	}
}
