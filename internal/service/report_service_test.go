package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/events"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

var (
	teacherActor = Actor{ID: 7, Role: "teacher"}
	adminActor   = Actor{ID: 1, Role: "admin"}
)

func mathReport(studentID uint) dto.ReportCreateRequest {
	return dto.ReportCreateRequest{
		StudentID:            studentID,
		TeacherID:            7,
		SubjectID:            3,
		ClassID:              2,
		Term:                 1,
		AcademicYear:         "2025",
		TotalAssignments:     10,
		SubmittedAssignments: 8,
		AverageScore:         81.5,
		TeacherRemark:        "steady progress",
	}
}

func notes(value string) *string {
	return &value
}

func TestReportServiceDuplicateSubmissionConflicts(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	created, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)
	require.Equal(t, string(models.ReportStatusSubmitted), created.Status)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.SubmittedAt)
	require.Nil(t, created.ReviewedAt)

	_, err = fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.ErrorIs(t, err, apperror.ErrConflict)

	var duplicate *apperror.DuplicateError
	require.True(t, errors.As(err, &duplicate))
	require.Equal(t, created.ID, duplicate.ExistingID)
	require.False(t, duplicate.CanResubmit)
	require.Equal(t, 1, fx.repo.count())
}

func TestReportServiceRejectThenResubmit(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	created, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)
	firstSubmittedAt := *created.SubmittedAt

	rejected, err := fx.reviews.Review(ctx, adminActor, created.ID, dto.ReportReviewRequest{Action: "reject", Notes: notes("incomplete")})
	require.NoError(t, err)
	require.Equal(t, string(models.ReportStatusRejected), rejected.Status)
	require.NotNil(t, rejected.ReviewedAt)
	require.Equal(t, "incomplete", rejected.AdminNotes)
	require.Equal(t, adminActor.ID, *rejected.ReviewedBy)

	guard, err := fx.reports.CheckExists(ctx, mathReport(1).Key())
	require.NoError(t, err)
	require.True(t, guard.Exists)
	require.True(t, guard.CanResubmit)
	require.Equal(t, created.ID, guard.ExistingID)

	time.Sleep(time.Millisecond)
	remark := "corrected remark"
	resubmitted, err := fx.reports.Resubmit(ctx, teacherActor, created.ID, dto.ReportResubmitRequest{TeacherRemark: &remark})
	require.NoError(t, err)
	require.Equal(t, string(models.ReportStatusResubmitted), resubmitted.Status)
	require.Equal(t, "corrected remark", resubmitted.TeacherRemark)
	require.Nil(t, resubmitted.ReviewedAt)
	require.Nil(t, resubmitted.ReviewedBy)
	require.True(t, resubmitted.SubmittedAt.After(firstSubmittedAt))

	detail, err := fx.reports.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 3)
	require.Equal(t, "submit", detail.History[0].Event)
	require.Equal(t, "reject", detail.History[1].Event)
	require.Equal(t, "incomplete", detail.History[1].Notes)
	require.Equal(t, "resubmit", detail.History[2].Event)

	require.Equal(t, []string{events.TypeReportSubmitted, events.TypeReportReviewed, events.TypeReportResubmitted}, fx.publisher.types())
}

func TestReportServiceResubmitRequiresRejectedReport(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	created, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)

	_, err = fx.reports.Resubmit(ctx, teacherActor, created.ID, dto.ReportResubmitRequest{})
	require.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = fx.reports.Resubmit(ctx, teacherActor, "missing", dto.ReportResubmitRequest{})
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestReportServiceResubmitValidatesCorrectedCounts(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	created, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)
	_, err = fx.reviews.Review(ctx, adminActor, created.ID, dto.ReportReviewRequest{Action: "reject"})
	require.NoError(t, err)

	submitted := 12
	_, err = fx.reports.Resubmit(ctx, teacherActor, created.ID, dto.ReportResubmitRequest{SubmittedAssignments: &submitted})
	require.ErrorIs(t, err, apperror.ErrValidation)

	report, err := fx.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusRejected, report.Status)
}

func TestReportServiceNewSubmissionAfterRejectionIsBlocked(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	created, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)
	_, err = fx.reviews.Review(ctx, adminActor, created.ID, dto.ReportReviewRequest{Action: "reject"})
	require.NoError(t, err)

	_, err = fx.reports.Create(ctx, teacherActor, mathReport(1))
	var duplicate *apperror.DuplicateError
	require.True(t, errors.As(err, &duplicate))
	require.True(t, duplicate.CanResubmit)
	require.Equal(t, created.ID, duplicate.ExistingID)
}

func TestReportServiceCreateValidatesInput(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	invalid := mathReport(1)
	invalid.Term = 4
	_, err := fx.reports.Create(ctx, teacherActor, invalid)
	require.ErrorIs(t, err, apperror.ErrValidation)

	invalid = mathReport(1)
	invalid.SubmittedAssignments = 11
	_, err = fx.reports.Create(ctx, teacherActor, invalid)
	require.ErrorIs(t, err, apperror.ErrValidation)

	invalid = mathReport(1)
	invalid.AverageScore = 100.5
	_, err = fx.reports.Create(ctx, teacherActor, invalid)
	require.ErrorIs(t, err, apperror.ErrValidation)

	require.Zero(t, fx.repo.count())
}

func TestReportServiceDraftLifecycle(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	payload := mathReport(1)
	payload.Draft = true
	draft, err := fx.reports.Create(ctx, teacherActor, payload)
	require.NoError(t, err)
	require.Equal(t, string(models.ReportStatusDraft), draft.Status)
	require.Nil(t, draft.SubmittedAt)

	guard, err := fx.reports.CheckExists(ctx, payload.Key())
	require.NoError(t, err)
	require.True(t, guard.Exists)
	require.False(t, guard.CanResubmit)

	submitted, err := fx.reports.SubmitDraft(ctx, teacherActor, draft.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.ReportStatusSubmitted), submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	_, err = fx.reports.SubmitDraft(ctx, teacherActor, draft.ID)
	require.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestReportServiceStoreConflictReportsWinner(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	var winner string
	fx.repo.insertFn = func(report models.Report) error {
		fx.repo.insertFn = nil
		racer := models.Report{StudentID: report.StudentID, SubjectID: report.SubjectID, Term: report.Term, AcademicYear: report.AcademicYear, TeacherID: report.TeacherID, Status: models.ReportStatusSubmitted}
		racer.SyncActiveKey()
		if err := fx.repo.Insert(ctx, &racer); err != nil {
			return err
		}
		winner = racer.ID
		return nil
	}

	_, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	var duplicate *apperror.DuplicateError
	require.True(t, errors.As(err, &duplicate))
	require.Equal(t, winner, duplicate.ExistingID)
	require.Equal(t, 1, fx.repo.count())
}

func TestReportServiceListAndDelete(t *testing.T) {
	fx := newReportFixture()
	ctx := context.Background()

	first, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)
	second := mathReport(2)
	second.Term = 2
	_, err = fx.reports.Create(ctx, teacherActor, second)
	require.NoError(t, err)

	term := 2
	list, err := fx.reports.List(ctx, repository.ReportFilter{Term: &term})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, uint(2), list[0].StudentID)

	require.NoError(t, fx.reports.Delete(ctx, adminActor, first.ID))
	require.NoError(t, fx.reports.Delete(ctx, adminActor, first.ID))

	_, err = fx.reports.Get(ctx, first.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
	require.Len(t, fx.audit.entries, 1)
	require.Equal(t, "report.deleted", fx.audit.entries[0].Action)
	require.Contains(t, fx.publisher.types(), events.TypeReportDeleted)
}

func TestReportServiceStoreFailuresAreTransient(t *testing.T) {
	fx := newReportFixture()
	fx.repo.findErr = errors.New("dial tcp: connection refused")

	_, err := fx.reports.Create(context.Background(), teacherActor, mathReport(1))
	require.ErrorIs(t, err, apperror.ErrTransient)

	_, err = fx.reports.CheckExists(context.Background(), mathReport(1).Key())
	require.ErrorIs(t, err, apperror.ErrTransient)
}

func TestReportServicePublishFailureDoesNotFailSubmission(t *testing.T) {
	fx := newReportFixture()
	fx.publisher.err = errors.New("broker down")

	created, err := fx.reports.Create(context.Background(), teacherActor, mathReport(1))
	require.NoError(t, err)
	require.Equal(t, string(models.ReportStatusSubmitted), created.Status)
}

func TestReportServiceEventsCarryCorrelation(t *testing.T) {
	fx := newReportFixture()
	ctx := observability.WithCorrelation(context.Background(), "req-123")

	created, err := fx.reports.Create(ctx, teacherActor, mathReport(1))
	require.NoError(t, err)

	fx.publisher.mu.Lock()
	defer fx.publisher.mu.Unlock()
	require.Len(t, fx.publisher.events, 1)
	event := fx.publisher.events[0]
	require.Equal(t, events.TypeReportSubmitted, event.Type)
	require.Equal(t, created.ID, event.ReportID)
	require.Equal(t, "req-123", event.CorrelationID)
	require.Equal(t, "", event.PreviousStatus)
}
