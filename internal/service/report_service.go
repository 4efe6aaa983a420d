package service

import (
	"context"
	"errors"
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
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// ReportService covers the teacher side of the report lifecycle.
type ReportService interface {
	CheckExists(ctx context.Context, key models.ReportKey) (dto.ReportGuardResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.ReportCreateRequest) (dto.ReportResponse, error)
	SubmitDraft(ctx context.Context, actor Actor, id string) (dto.ReportResponse, error)
	Resubmit(ctx context.Context, actor Actor, id string, payload dto.ReportResubmitRequest) (dto.ReportResponse, error)
	Get(ctx context.Context, id string) (dto.ReportDetailResponse, error)
	List(ctx context.Context, filter repository.ReportFilter) ([]dto.ReportResponse, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

// ReportServiceConfig tunes store access.
type ReportServiceConfig struct {
	StoreTimeout time.Duration
}

type reportService struct {
	repo      repository.ReportRepository
	guard     SubmissionGuard
	validator *validator.Validate
	audit     AuditRecorder
	recorder  transitionRecorder
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo repository.ReportRepository, guard SubmissionGuard, validator *validator.Validate, audit AuditRecorder, publisher events.Publisher, cfg ReportServiceConfig, logger zerolog.Logger) ReportService {
	logger = logger.With().Str("component", "report_service").Logger()
	return &reportService{
		repo:      repo,
		guard:     guard,
		validator: validator,
		audit:     audit,
		recorder:  transitionRecorder{repo: repo, publisher: publisher, logger: logger},
		timeout:   cfg.StoreTimeout,
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/report"),
		now:       time.Now,
	}
}

func (s *reportService) CheckExists(ctx context.Context, key models.ReportKey) (dto.ReportGuardResponse, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	result, err := s.guard.CheckExists(ctx, key)
	if err != nil {
		return dto.ReportGuardResponse{}, err
	}

	return dto.ReportGuardResponse{
		Exists:      result.Exists,
		CanResubmit: result.CanResubmit,
		ExistingID:  result.ExistingID,
	}, nil
}

func (s *reportService) Create(ctx context.Context, actor Actor, payload dto.ReportCreateRequest) (dto.ReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reports.create", trace.WithAttributes(
		attribute.Int64("report.student_id", int64(payload.StudentID)),
		attribute.Int("report.term", payload.Term),
		attribute.String("report.academic_year", payload.AcademicYear),
		attribute.Bool("report.draft", payload.Draft),
	))
	defer span.End()

	payload.AcademicYear = strings.TrimSpace(payload.AcademicYear)
	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ReportResponse{}, apperror.Validation(err)
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	key := payload.Key()
	guard, err := s.guard.CheckExists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "guard_failed")
		return dto.ReportResponse{}, err
	}
	if guard.Exists {
		span.SetStatus(codes.Error, "duplicate")
		return dto.ReportResponse{}, &apperror.DuplicateError{ExistingID: guard.ExistingID, CanResubmit: guard.CanResubmit}
	}

	report := models.Report{
		StudentID:            payload.StudentID,
		TeacherID:            payload.TeacherID,
		SubjectID:            payload.SubjectID,
		ClassID:              payload.ClassID,
		Term:                 payload.Term,
		AcademicYear:         payload.AcademicYear,
		TotalAssignments:     payload.TotalAssignments,
		SubmittedAssignments: payload.SubmittedAssignments,
		AverageScore:         payload.AverageScore,
		TeacherRemark:        strings.TrimSpace(payload.TeacherRemark),
	}

	event := lifecycle.EventSubmit
	if payload.Draft {
		event = lifecycle.EventCreateDraft
	}
	transition, err := lifecycle.Apply(&report, event, s.now().UTC(), nil)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	if err := s.repo.Insert(ctx, &report); err != nil {
		err = s.duplicateFromStore(ctx, key, storeError(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert_failed")
		return dto.ReportResponse{}, err
	}

	s.recorder.record(ctx, report, transition, actor, "")
	span.SetAttributes(attribute.String("report.id", report.ID), attribute.String("report.status", string(report.Status)))

	return dto.NewReportResponse(report), nil
}

func (s *reportService) SubmitDraft(ctx context.Context, actor Actor, id string) (dto.ReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reports.submit_draft", trace.WithAttributes(attribute.String("report.id", id)))
	defer span.End()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, storeError(err)
	}

	transition, err := lifecycle.Apply(&report, lifecycle.EventSubmit, s.now().UTC(), nil)
	if err != nil {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.ReportResponse{}, err
	}

	updated, err := s.repo.Update(ctx, id, transition.From, repository.PatchFromReport(report))
	if err != nil {
		err = s.duplicateFromStore(ctx, report.Key(), storeError(err))
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	s.recorder.record(ctx, updated, transition, actor, "")
	return dto.NewReportResponse(updated), nil
}

func (s *reportService) Resubmit(ctx context.Context, actor Actor, id string, payload dto.ReportResubmitRequest) (dto.ReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reports.resubmit", trace.WithAttributes(attribute.String("report.id", id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ReportResponse{}, apperror.Validation(err)
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, storeError(err)
	}

	if !lifecycle.CanResubmit(report.Status) {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.ReportResponse{}, &apperror.TransitionError{From: string(report.Status), Event: string(lifecycle.EventResubmit)}
	}

	if payload.TotalAssignments != nil {
		report.TotalAssignments = *payload.TotalAssignments
	}
	if payload.SubmittedAssignments != nil {
		report.SubmittedAssignments = *payload.SubmittedAssignments
	}
	if payload.AverageScore != nil {
		report.AverageScore = *payload.AverageScore
	}
	if payload.TeacherRemark != nil {
		report.TeacherRemark = strings.TrimSpace(*payload.TeacherRemark)
	}
	if report.SubmittedAssignments > report.TotalAssignments {
		return dto.ReportResponse{}, apperror.Validationf("submitted assignments (%d) exceed total assignments (%d)", report.SubmittedAssignments, report.TotalAssignments)
	}

	transition, err := lifecycle.Apply(&report, lifecycle.EventResubmit, s.now().UTC(), nil)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	updated, err := s.repo.Update(ctx, id, transition.From, repository.PatchFromReport(report))
	if err != nil {
		err = s.duplicateFromStore(ctx, report.Key(), storeError(err))
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	s.recorder.record(ctx, updated, transition, actor, updated.TeacherRemark)
	return dto.NewReportResponse(updated), nil
}

func (s *reportService) Get(ctx context.Context, id string) (dto.ReportDetailResponse, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ReportDetailResponse{}, storeError(err)
	}

	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return dto.ReportDetailResponse{}, storeError(err)
	}

	return dto.NewReportDetailResponse(report, history), nil
}

func (s *reportService) List(ctx context.Context, filter repository.ReportFilter) ([]dto.ReportResponse, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	reports, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}

	return dto.NewReportResponseSlice(reports), nil
}

func (s *reportService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return storeError(err)
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err)
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, AuditEntry{
			Actor:     actor,
			Action:    AuditReportDeleted,
			ReportID:  id,
			StudentID: existing.StudentID,
			Details: map[string]interface{}{
				"status":        string(existing.Status),
				"term":          existing.Term,
				"academic_year": existing.AcademicYear,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Str("report_id", id).Msg("failed to audit report deletion")
		}
	}
	s.recorder.publish(ctx, events.TypeReportDeleted, existing, existing.Status, actor)

	return nil
}

// duplicateFromStore turns a store-level uniqueness conflict into a DuplicateError
// naming the report that won the race.
func (s *reportService) duplicateFromStore(ctx context.Context, key models.ReportKey, err error) error {
	if !errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrDuplicateReport) {
		return err
	}

	result, guardErr := s.guard.CheckExists(ctx, key)
	if guardErr != nil || !result.Exists || result.CanResubmit {
		return err
	}

	return &apperror.DuplicateError{ExistingID: result.ExistingID}
}

func (s *reportService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
