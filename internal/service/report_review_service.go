package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/events"
	"github.com/noah-isme/gema-progress-api/internal/lifecycle"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// ReportReviewService applies administrator decisions to submitted reports.
type ReportReviewService interface {
	Review(ctx context.Context, actor Actor, id string, payload dto.ReportReviewRequest) (dto.ReportResponse, error)
}

type reportReviewService struct {
	repo      repository.ReportRepository
	validator *validator.Validate
	audit     AuditRecorder
	recorder  transitionRecorder
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewReportReviewService constructs the review processor.
func NewReportReviewService(repo repository.ReportRepository, validator *validator.Validate, audit AuditRecorder, publisher events.Publisher, cfg ReportServiceConfig, logger zerolog.Logger) ReportReviewService {
	logger = logger.With().Str("component", "report_review_service").Logger()
	return &reportReviewService{
		repo:      repo,
		validator: validator,
		audit:     audit,
		recorder:  transitionRecorder{repo: repo, publisher: publisher, logger: logger},
		timeout:   cfg.StoreTimeout,
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/report_review"),
		now:       time.Now,
	}
}

func (s *reportReviewService) Review(ctx context.Context, actor Actor, id string, payload dto.ReportReviewRequest) (dto.ReportResponse, error) {
	payload.Action = strings.ToLower(strings.TrimSpace(payload.Action))
	ctx, span := s.tracer.Start(ctx, "reports.review", trace.WithAttributes(
		attribute.String("report.id", id),
		attribute.String("review.action", payload.Action),
		attribute.Int64("review.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ReportResponse{}, apperror.Validation(err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		err = storeError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.ReportResponse{}, err
	}

	event := lifecycle.EventApprove
	if payload.Action == "reject" {
		event = lifecycle.EventReject
	}

	transition, err := lifecycle.Apply(&report, event, s.now().UTC(), payload.Notes)
	if err != nil {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.ReportResponse{}, err
	}
	reviewer := actor.ID
	report.ReviewedBy = &reviewer

	updated, err := s.repo.Update(ctx, id, transition.From, repository.PatchFromReport(report))
	if err != nil {
		err = storeError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "update_failed")
		return dto.ReportResponse{}, err
	}

	s.recorder.record(ctx, updated, transition, actor, updated.AdminNotes)

	if s.audit != nil {
		action := AuditReportApproved
		if transition.Event == lifecycle.EventReject {
			action = AuditReportRejected
		}
		if err := s.audit.Record(ctx, AuditEntry{
			Actor:     actor,
			Action:    action,
			ReportID:  updated.ID,
			StudentID: updated.StudentID,
			Details: map[string]interface{}{
				"from_status": string(transition.From),
				"term":        updated.Term,
				"notes":       updated.AdminNotes,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Str("report_id", updated.ID).Msg("failed to audit report review")
		}
	}

	span.SetAttributes(attribute.String("report.status", string(updated.Status)))
	s.logger.Info().
		Str("report_id", updated.ID).
		Str("from", string(transition.From)).
		Str("to", string(transition.To)).
		Uint("reviewer_id", actor.ID).
		Msg("report reviewed")

	return dto.NewReportResponse(updated), nil
}
