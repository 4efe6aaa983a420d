package handler

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// AdminReportHandler exposes administrator review, deletion and reporting endpoints.
type AdminReportHandler struct {
	reports service.ReportService
	reviews service.ReportReviewService
	stats   service.ReportStatsService
	logger  zerolog.Logger
}

// NewAdminReportHandler constructs the handler.
func NewAdminReportHandler(reports service.ReportService, reviews service.ReportReviewService, stats service.ReportStatsService, logger zerolog.Logger) *AdminReportHandler {
	return &AdminReportHandler{
		reports: reports,
		reviews: reviews,
		stats:   stats,
		logger:  logger.With().Str("component", "admin_report_handler").Logger(),
	}
}

// Register attaches admin report routes to the router group.
func (h *AdminReportHandler) Register(router fiber.Router) {
	router.Get("/stats", h.summary)
	router.Get("/export", h.export)
	router.Patch("/:id/review", h.review)
	router.Delete("/:id", h.delete)
}

func (h *AdminReportHandler) review(c *fiber.Ctx) error {
	var payload dto.ReportReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Notes = sanitizeTextPtr(payload.Notes)

	report, err := h.reviews.Review(c.UserContext(), actorFromContext(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to review report")
	}

	return utils.SendSuccess(c, fmt.Sprintf("report %s", report.Status), report)
}

func (h *AdminReportHandler) delete(c *fiber.Ctx) error {
	if err := h.reports.Delete(c.UserContext(), actorFromContext(c), c.Params("id")); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete report")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminReportHandler) summary(c *fiber.Ctx) error {
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load report statistics")
	}

	summary, err := h.stats.Summary(c.UserContext(), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load report statistics")
	}

	return utils.SendSuccess(c, "report statistics", summary)
}

func (h *AdminReportHandler) export(c *fiber.Ctx) error {
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to export reports")
	}

	var buf bytes.Buffer
	if err := h.stats.Export(c.UserContext(), filter, &buf); err != nil {
		return sendServiceError(c, h.logger, err, "failed to export reports")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="progress-reports.csv"`)
	return c.Send(buf.Bytes())
}
