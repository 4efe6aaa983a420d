package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// ReportHandler exposes the teacher-facing report endpoints.
type ReportHandler struct {
	reports service.ReportService
	bulk    service.ReportBulkService
	logger  zerolog.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports service.ReportService, bulk service.ReportBulkService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		bulk:    bulk,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches report routes to the router group. bulkLimiter may be nil.
func (h *ReportHandler) Register(router fiber.Router, bulkLimiter fiber.Handler) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}

	router.Get("/check", middleware.WithAuth(h.check, staff))
	if bulkLimiter != nil {
		router.Post("/bulk", bulkLimiter, middleware.WithAuth(h.submitBulk, staff))
	} else {
		router.Post("/bulk", middleware.WithAuth(h.submitBulk, staff))
	}
	router.Post("", middleware.WithAuth(h.create, staff))
	router.Get("", middleware.WithAuth(h.list, staff))
	router.Get("/:id", middleware.WithAuth(h.get, staff))
	router.Post("/:id/submit", middleware.WithAuth(h.submitDraft, staff))
	router.Put("/:id/resubmit", middleware.WithAuth(h.resubmit, staff))
}

func (h *ReportHandler) check(c *fiber.Ctx) error {
	term, err := parseQueryInt(c, "term")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid term")
	}

	key := models.ReportKey{Term: term, AcademicYear: strings.TrimSpace(c.Query("academic_year"))}
	for name, target := range map[string]*uint{"student_id": &key.StudentID, "subject_id": &key.SubjectID, "teacher_id": &key.TeacherID} {
		id, err := parseQueryUintPtr(c, name)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if id != nil {
			*target = *id
		}
	}

	result, err := h.reports.CheckExists(c.UserContext(), key)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to check report")
	}

	return utils.SendSuccess(c, "report check", result)
}

func (h *ReportHandler) create(c *fiber.Ctx) error {
	var payload dto.ReportCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	if err := prepareCreate(actor, &payload); err != nil {
		return sendServiceError(c, h.logger, err, "failed to create report")
	}

	report, err := h.reports.Create(c.UserContext(), actor, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create report")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "report created", report)
}

func (h *ReportHandler) submitBulk(c *fiber.Ctx) error {
	var payload dto.ReportBulkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if len(payload.Reports) > 1000 {
		return utils.SendError(c, fiber.StatusBadRequest, "too many reports in one request")
	}

	actor := actorFromContext(c)
	accepted := make([]dto.ReportCreateRequest, 0, len(payload.Reports))
	denied := make([]dto.BulkFailureItem, 0)
	for _, item := range payload.Reports {
		if err := prepareCreate(actor, &item); err != nil {
			denied = append(denied, deniedBulkItem(item, err))
			continue
		}
		accepted = append(accepted, item)
	}

	result := h.bulk.SubmitBulk(c.UserContext(), actor, accepted)
	result.Failed = append(result.Failed, denied...)
	requestLogger(h.logger, c).Info().
		Int("successful", len(result.Successful)).
		Int("failed", len(result.Failed)).
		Msg("bulk report submission")

	return utils.SendSuccess(c, "bulk submission processed", result)
}

func (h *ReportHandler) list(c *fiber.Ctx) error {
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list reports")
	}

	actor := actorFromContext(c)
	if strings.EqualFold(actor.Role, middleware.AuthRoleTeacher) {
		filter.TeacherID = &actor.ID
	}

	reports, err := h.reports.List(c.UserContext(), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list reports")
	}

	return utils.SendSuccess(c, "reports", reports)
}

func (h *ReportHandler) get(c *fiber.Ctx) error {
	report, err := h.reports.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load report")
	}
	if err := ensureOwner(actorFromContext(c), report.TeacherID); err != nil {
		return sendServiceError(c, h.logger, err, "failed to load report")
	}

	return utils.SendSuccess(c, "report", report)
}

func (h *ReportHandler) submitDraft(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	if err := h.checkOwnership(c, actor); err != nil {
		return sendServiceError(c, h.logger, err, "failed to submit report")
	}

	report, err := h.reports.SubmitDraft(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to submit report")
	}

	return utils.SendSuccess(c, "report submitted", report)
}

func (h *ReportHandler) resubmit(c *fiber.Ctx) error {
	var payload dto.ReportResubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.TeacherRemark = sanitizeTextPtr(payload.TeacherRemark)

	actor := actorFromContext(c)
	if err := h.checkOwnership(c, actor); err != nil {
		return sendServiceError(c, h.logger, err, "failed to resubmit report")
	}

	report, err := h.reports.Resubmit(c.UserContext(), actor, c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to resubmit report")
	}

	return utils.SendSuccess(c, "report resubmitted", report)
}

func (h *ReportHandler) checkOwnership(c *fiber.Ctx, actor service.Actor) error {
	if !strings.EqualFold(actor.Role, middleware.AuthRoleTeacher) {
		return nil
	}
	report, err := h.reports.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ensureOwner(actor, report.TeacherID)
}

// prepareCreate binds the caller to the submission and cleans free text.
func prepareCreate(actor service.Actor, payload *dto.ReportCreateRequest) error {
	payload.TeacherRemark = sanitizeText(payload.TeacherRemark)
	payload.StudentName = strings.TrimSpace(sanitizeText(payload.StudentName))

	if !strings.EqualFold(actor.Role, middleware.AuthRoleTeacher) {
		return nil
	}
	if payload.TeacherID == 0 {
		payload.TeacherID = actor.ID
	}
	return ensureOwner(actor, payload.TeacherID)
}

// deniedBulkItem keeps items the caller may not submit in the per-item ledger.
func deniedBulkItem(payload dto.ReportCreateRequest, err error) dto.BulkFailureItem {
	name := payload.StudentName
	if name == "" {
		name = fmt.Sprintf("student #%d", payload.StudentID)
	}
	return dto.BulkFailureItem{StudentName: name, Error: err.Error(), Kind: apperror.Kind(err)}
}

func ensureOwner(actor service.Actor, teacherID uint) error {
	if !strings.EqualFold(actor.Role, middleware.AuthRoleTeacher) || actor.ID == teacherID {
		return nil
	}
	return fmt.Errorf("%w: report belongs to teacher %s", apperror.ErrPermission, strconv.FormatUint(uint64(teacherID), 10))
}
