package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// ReportStatsService serves report statistics and exports.
type ReportStatsService interface {
	Summary(ctx context.Context, filter repository.ReportFilter) (dto.ReportSummary, error)
	Export(ctx context.Context, filter repository.ReportFilter, w io.Writer) error
}

type reportStatsService struct {
	repo     repository.ReportRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReportStatsService wires the statistics service. cache may be nil.
func NewReportStatsService(repo repository.ReportRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReportStatsService {
	return &reportStatsService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "report_stats_service").Logger(),
		now:      time.Now,
	}
}

func (s *reportStatsService) Summary(ctx context.Context, filter repository.ReportFilter) (dto.ReportSummary, error) {
	cacheKey := statsCacheKey(filter)
	tracer := otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/report_stats")
	ctx, span := tracer.Start(ctx, "reports.stats")
	span.SetAttributes(attribute.String("reports.cache_key", cacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var summary dto.ReportSummary
			if unmarshalErr := json.Unmarshal([]byte(cached), &summary); unmarshalErr == nil {
				summary.CacheHit = true
				span.SetAttributes(attribute.Bool("reports.cache_hit", true))
				observability.ReportStatsCache().WithLabelValues("hit").Inc()
				return summary, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read report stats cache")
			span.RecordError(err)
		}
		observability.ReportStatsCache().WithLabelValues("miss").Inc()
	}

	reports, err := s.repo.Find(ctx, filter)
	if err != nil {
		err = storeError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_reports_failed")
		return dto.ReportSummary{}, err
	}

	summary := SummarizeReports(reports)
	summary.GeneratedAt = s.now().UTC()
	span.SetAttributes(attribute.Int("reports.total", summary.Total))

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store report stats cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *reportStatsService) Export(ctx context.Context, filter repository.ReportFilter, w io.Writer) error {
	reports, err := s.repo.Find(ctx, filter)
	if err != nil {
		return storeError(err)
	}

	if err := WriteReportsCSV(w, reports); err != nil {
		return fmt.Errorf("export reports: %w", err)
	}

	s.logger.Debug().Int("rows", len(reports)).Msg("reports exported")
	return nil
}

func statsCacheKey(filter repository.ReportFilter) string {
	parts := []string{"reports:stats"}
	if filter.AcademicYear != nil {
		parts = append(parts, "year="+strings.TrimSpace(*filter.AcademicYear))
	}
	if filter.Term != nil {
		parts = append(parts, fmt.Sprintf("term=%d", *filter.Term))
	}
	if filter.SubjectID != nil {
		parts = append(parts, fmt.Sprintf("subject=%d", *filter.SubjectID))
	}
	if filter.TeacherID != nil {
		parts = append(parts, fmt.Sprintf("teacher=%d", *filter.TeacherID))
	}
	if filter.ClassID != nil {
		parts = append(parts, fmt.Sprintf("class=%d", *filter.ClassID))
	}
	if filter.StudentID != nil {
		parts = append(parts, fmt.Sprintf("student=%d", *filter.StudentID))
	}
	if filter.Status != nil {
		parts = append(parts, "status="+string(*filter.Status))
	}
	return strings.Join(parts, ":")
}
