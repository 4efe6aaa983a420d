package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// DefaultBulkBatchSize bounds how many submissions run against the store at once.
const DefaultBulkBatchSize = 10

// ReportBulkService submits many reports with a per-item result ledger.
type ReportBulkService interface {
	SubmitBulk(ctx context.Context, actor Actor, reports []dto.ReportCreateRequest) dto.ReportBulkResponse
}

// ReportBulkConfig tunes batching.
type ReportBulkConfig struct {
	BatchSize    int
	StoreTimeout time.Duration
}

type reportBulkService struct {
	reports   ReportService
	students  repository.StudentRepository
	batchSize int
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
}

type bulkOutcome struct {
	reportID string
	err      error
}

// NewReportBulkService constructs the bulk coordinator on top of the single-report service.
func NewReportBulkService(reports ReportService, students repository.StudentRepository, cfg ReportBulkConfig, logger zerolog.Logger) ReportBulkService {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBulkBatchSize
	}

	return &reportBulkService{
		reports:   reports,
		students:  students,
		batchSize: batchSize,
		timeout:   cfg.StoreTimeout,
		logger:    logger.With().Str("component", "report_bulk_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/report_bulk"),
	}
}

func (s *reportBulkService) SubmitBulk(ctx context.Context, actor Actor, reports []dto.ReportCreateRequest) dto.ReportBulkResponse {
	ctx, span := s.tracer.Start(ctx, "reports.submit_bulk", trace.WithAttributes(
		attribute.Int("bulk.items", len(reports)),
		attribute.Int("bulk.batch_size", s.batchSize),
	))
	defer span.End()

	outcomes := make([]bulkOutcome, len(reports))
	for start := 0; start < len(reports); start += s.batchSize {
		end := start + s.batchSize
		if end > len(reports) {
			end = len(reports)
		}
		s.runBatch(ctx, actor, reports, outcomes, start, end)
	}

	names := s.studentNames(ctx, reports)
	response := dto.ReportBulkResponse{
		Successful: make([]dto.BulkSuccessItem, 0, len(reports)),
		Failed:     make([]dto.BulkFailureItem, 0),
	}
	for i, outcome := range outcomes {
		name := names[i]
		if outcome.err == nil {
			response.Successful = append(response.Successful, dto.BulkSuccessItem{StudentName: name, ReportID: outcome.reportID})
			observability.BulkItems().WithLabelValues("successful").Inc()
			continue
		}

		response.Failed = append(response.Failed, bulkFailure(name, outcome.err))
		observability.BulkItems().WithLabelValues("failed").Inc()
	}

	span.SetAttributes(
		attribute.Int("bulk.successful", len(response.Successful)),
		attribute.Int("bulk.failed", len(response.Failed)),
	)
	s.logger.Info().
		Uint("actor_id", actor.ID).
		Int("items", len(reports)).
		Int("successful", len(response.Successful)).
		Int("failed", len(response.Failed)).
		Msg("bulk submission processed")

	return response
}

// runBatch resolves every item in [start, end) before returning. Item errors are
// recorded in outcomes and never cancel siblings.
func (s *reportBulkService) runBatch(ctx context.Context, actor Actor, reports []dto.ReportCreateRequest, outcomes []bulkOutcome, start, end int) {
	started := time.Now()
	defer func() {
		observability.BulkBatchDuration().Observe(time.Since(started).Seconds())
	}()

	var group errgroup.Group
	group.SetLimit(s.batchSize)
	for i := start; i < end; i++ {
		group.Go(func() error {
			outcomes[i] = s.submitOne(ctx, actor, reports[i])
			return nil
		})
	}
	_ = group.Wait()
}

func (s *reportBulkService) submitOne(ctx context.Context, actor Actor, payload dto.ReportCreateRequest) (outcome bulkOutcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error().Interface("panic", recovered).Uint("student_id", payload.StudentID).Msg("bulk item panicked")
			outcome = bulkOutcome{err: fmt.Errorf("internal error: %v", recovered)}
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	created, err := s.reports.Create(ctx, actor, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperror.ErrTransient) {
			err = apperror.Transient(err)
		}
		return bulkOutcome{err: err}
	}

	return bulkOutcome{reportID: created.ID}
}

// studentNames prefers the submitted name, then the store's name, then a placeholder.
func (s *reportBulkService) studentNames(ctx context.Context, reports []dto.ReportCreateRequest) []string {
	names := make([]string, len(reports))
	missing := make([]uint, 0)
	for i, report := range reports {
		names[i] = strings.TrimSpace(report.StudentName)
		if names[i] == "" && report.StudentID > 0 {
			missing = append(missing, report.StudentID)
		}
	}

	var lookup map[uint]string
	if len(missing) > 0 && s.students != nil {
		var err error
		lookup, err = s.students.NamesByID(ctx, missing)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to resolve student names for bulk result")
		}
	}

	for i, report := range reports {
		if names[i] != "" {
			continue
		}
		if name := strings.TrimSpace(lookup[report.StudentID]); name != "" {
			names[i] = name
			continue
		}
		names[i] = fmt.Sprintf("student #%d", report.StudentID)
	}

	return names
}

func bulkFailure(name string, err error) dto.BulkFailureItem {
	item := dto.BulkFailureItem{StudentName: name, Kind: apperror.Kind(err)}

	var duplicate *apperror.DuplicateError
	switch {
	case errors.As(err, &duplicate):
		item.Error = "duplicate"
		item.ExistingID = duplicate.ExistingID
	case errors.Is(err, apperror.ErrConflict) && !errors.Is(err, apperror.ErrInvalidTransition):
		item.Error = "duplicate"
		item.Kind = "duplicate"
	default:
		item.Error = err.Error()
	}

	return item
}
