// Package lifecycle owns every status change of a progress report. No other
// package writes Report.Status.
package lifecycle

import (
	"time"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

// Event is an action that moves a report through its lifecycle.
type Event string

const (
	// EventCreateDraft saves a new report without submitting it.
	EventCreateDraft Event = "create_draft"
	// EventSubmit submits a new report or an existing draft.
	EventSubmit Event = "submit"
	// EventApprove is an administrator accepting a report.
	EventApprove Event = "approve"
	// EventReject is an administrator sending a report back.
	EventReject Event = "reject"
	// EventResubmit is a teacher sending a corrected rejected report.
	EventResubmit Event = "resubmit"
)

// Transition describes an applied status change.
type Transition struct {
	From  models.ReportStatus
	To    models.ReportStatus
	Event Event
	At    time.Time
}

// Next returns the status reached by applying event in status from.
func Next(from models.ReportStatus, event Event) (models.ReportStatus, error) {
	switch from {
	case models.ReportStatusNone:
		switch event {
		case EventCreateDraft:
			return models.ReportStatusDraft, nil
		case EventSubmit:
			return models.ReportStatusSubmitted, nil
		}
	case models.ReportStatusDraft:
		if event == EventSubmit {
			return models.ReportStatusSubmitted, nil
		}
	case models.ReportStatusSubmitted, models.ReportStatusResubmitted:
		switch event {
		case EventApprove:
			return models.ReportStatusApproved, nil
		case EventReject:
			return models.ReportStatusRejected, nil
		}
	case models.ReportStatusRejected:
		if event == EventResubmit {
			return models.ReportStatusResubmitted, nil
		}
	case models.ReportStatusApproved:
		// terminal
	}

	return models.ReportStatusNone, &apperror.TransitionError{From: string(from), Event: string(event)}
}

// Apply moves report to its next status and stamps the matching timestamps.
// notes is only consulted by review events; nil leaves admin notes untouched
// where the lifecycle table does not require them.
func Apply(report *models.Report, event Event, at time.Time, notes *string) (Transition, error) {
	from := report.Status
	to, err := Next(from, event)
	if err != nil {
		return Transition{}, err
	}

	switch to {
	case models.ReportStatusDraft:
		report.CreatedAt = at
	case models.ReportStatusSubmitted:
		if from == models.ReportStatusNone {
			report.CreatedAt = at
		}
		report.SubmittedAt = timePtr(at)
	case models.ReportStatusResubmitted:
		report.SubmittedAt = timePtr(at)
		report.ReviewedAt = nil
		report.ReviewedBy = nil
	case models.ReportStatusApproved:
		report.ReviewedAt = timePtr(at)
		if from == models.ReportStatusSubmitted || notes != nil {
			report.AdminNotes = valueOf(notes)
		}
	case models.ReportStatusRejected:
		report.ReviewedAt = timePtr(at)
		report.AdminNotes = valueOf(notes)
	}

	report.Status = to
	report.UpdatedAt = at
	report.SyncActiveKey()

	return Transition{From: from, To: to, Event: event, At: at}, nil
}

// CanResubmit reports whether a report in status may be corrected and resubmitted.
func CanResubmit(status models.ReportStatus) bool {
	_, err := Next(status, EventResubmit)
	return err == nil
}

// Reviewable reports whether an administrator may approve or reject a report in status.
func Reviewable(status models.ReportStatus) bool {
	_, err := Next(status, EventApprove)
	return err == nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
