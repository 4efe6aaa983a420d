package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/events"
	"github.com/noah-isme/gema-progress-api/internal/lifecycle"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// transitionRecorder writes the side records of an applied transition: status
// history, metrics and the outbound event. None of them can fail the transition.
type transitionRecorder struct {
	repo      repository.ReportRepository
	publisher events.Publisher
	logger    zerolog.Logger
}

func (r transitionRecorder) record(ctx context.Context, report models.Report, transition lifecycle.Transition, actor Actor, notes string) {
	history := models.ReportStatusHistory{
		ReportID:   report.ID,
		FromStatus: transition.From,
		ToStatus:   transition.To,
		Event:      string(transition.Event),
		ActorID:    actor.ID,
		ActorRole:  normalizeRole(actor.Role),
		Notes:      notes,
		OccurredAt: transition.At,
	}
	if err := r.repo.AppendHistory(ctx, &history); err != nil {
		r.logger.Warn().Err(err).Str("report_id", report.ID).Msg("failed to persist report status history")
	}

	observability.ReportTransitions().WithLabelValues(statusLabel(transition.From), string(transition.To)).Inc()

	r.publish(ctx, eventType(transition), report, transition.From, actor)
}

func (r transitionRecorder) publish(ctx context.Context, eventType string, report models.Report, previous models.ReportStatus, actor Actor) {
	if r.publisher == nil {
		return
	}

	event := events.ReportEvent{
		Type:           eventType,
		ReportID:       report.ID,
		StudentID:      report.StudentID,
		TeacherID:      report.TeacherID,
		Status:         string(report.Status),
		PreviousStatus: string(previous),
		ActorID:        actor.ID,
		CorrelationID:  observability.CorrelationFromContext(ctx),
		OccurredAt:     time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("report_id", report.ID).Str("type", eventType).Msg("failed to publish report event")
	}
}

func eventType(transition lifecycle.Transition) string {
	switch transition.Event {
	case lifecycle.EventCreateDraft:
		return events.TypeReportCreated
	case lifecycle.EventSubmit:
		return events.TypeReportSubmitted
	case lifecycle.EventResubmit:
		return events.TypeReportResubmitted
	default:
		return events.TypeReportReviewed
	}
}

func statusLabel(status models.ReportStatus) string {
	if status == models.ReportStatusNone {
		return "none"
	}
	return string(status)
}
