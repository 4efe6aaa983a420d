package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportStatus is the lifecycle state of a progress report.
type ReportStatus string

const (
	// ReportStatusNone marks a report that has not entered the lifecycle yet.
	ReportStatusNone ReportStatus = ""
	// ReportStatusDraft is a report saved by a teacher but not yet final.
	ReportStatusDraft ReportStatus = "draft"
	// ReportStatusSubmitted is awaiting administrator review.
	ReportStatusSubmitted ReportStatus = "submitted"
	// ReportStatusResubmitted is a corrected report awaiting review again.
	ReportStatusResubmitted ReportStatus = "resubmitted"
	// ReportStatusApproved has been accepted by an administrator.
	ReportStatusApproved ReportStatus = "approved"
	// ReportStatusRejected has been sent back to the teacher.
	ReportStatusRejected ReportStatus = "rejected"
)

// ReportStatuses lists every lifecycle status in display order.
var ReportStatuses = []ReportStatus{
	ReportStatusDraft,
	ReportStatusSubmitted,
	ReportStatusResubmitted,
	ReportStatusApproved,
	ReportStatusRejected,
}

// ParseReportStatus converts user input into a known status.
func ParseReportStatus(value string) (ReportStatus, error) {
	normalized := ReportStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range ReportStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return ReportStatusNone, fmt.Errorf("unknown report status %q", value)
}

// IsActive reports whether the status blocks another submission for the same period.
func (s ReportStatus) IsActive() bool {
	switch s {
	case ReportStatusSubmitted, ReportStatusResubmitted, ReportStatusApproved:
		return true
	default:
		return false
	}
}

// ReportKey identifies the reporting period of a student for one subject and teacher.
type ReportKey struct {
	StudentID    uint   `json:"student_id" validate:"required,gt=0"`
	SubjectID    uint   `json:"subject_id" validate:"required,gt=0"`
	Term         int    `json:"term" validate:"required,oneof=1 2 3"`
	AcademicYear string `json:"academic_year" validate:"required,min=4,max=16"`
	TeacherID    uint   `json:"teacher_id" validate:"required,gt=0"`
}

// String renders the key as stored in the active-key unique index.
func (k ReportKey) String() string {
	return fmt.Sprintf("%d:%d:%d:%s:%d", k.StudentID, k.SubjectID, k.Term, strings.TrimSpace(k.AcademicYear), k.TeacherID)
}

// Report is a per-student, per-subject, per-term progress record.
type Report struct {
	ID                   string       `gorm:"primaryKey;size:36" json:"id"`
	StudentID            uint         `gorm:"not null;index:idx_reports_period,priority:1" json:"student_id"`
	SubjectID            uint         `gorm:"not null;index:idx_reports_period,priority:2" json:"subject_id"`
	Term                 int          `gorm:"not null;index:idx_reports_period,priority:3" json:"term"`
	AcademicYear         string       `gorm:"size:16;not null;index:idx_reports_period,priority:4" json:"academic_year"`
	TeacherID            uint         `gorm:"not null;index:idx_reports_period,priority:5" json:"teacher_id"`
	ClassID              uint         `gorm:"not null;index" json:"class_id"`
	TotalAssignments     int          `gorm:"not null;default:0" json:"total_assignments"`
	SubmittedAssignments int          `gorm:"not null;default:0" json:"submitted_assignments"`
	AverageScore         float64      `gorm:"not null;default:0" json:"average_score"`
	TeacherRemark        string       `gorm:"type:text" json:"teacher_remark"`
	AdminNotes           string       `gorm:"type:text" json:"admin_notes"`
	Status               ReportStatus `gorm:"size:16;not null;index" json:"status"`
	ActiveKey            *string      `gorm:"size:128;uniqueIndex:idx_reports_active_key" json:"-"`
	ReviewedBy           *uint        `json:"reviewed_by"`
	CreatedAt            time.Time    `json:"created_at"`
	SubmittedAt          *time.Time   `json:"submitted_at"`
	ReviewedAt           *time.Time   `json:"reviewed_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	Student              Student      `gorm:"foreignKey:StudentID" json:"-"`
	Teacher              Teacher      `gorm:"foreignKey:TeacherID" json:"-"`
	Subject              Subject      `gorm:"foreignKey:SubjectID" json:"-"`
	Class                Class        `gorm:"foreignKey:ClassID" json:"-"`
}

// BeforeCreate assigns a store-generated identifier.
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Key returns the reporting period tuple of the report.
func (r Report) Key() ReportKey {
	return ReportKey{
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID,
		Term:         r.Term,
		AcademicYear: r.AcademicYear,
		TeacherID:    r.TeacherID,
	}
}

// SyncActiveKey sets the unique active key while the report is active and clears it otherwise.
func (r *Report) SyncActiveKey() {
	if !r.Status.IsActive() {
		r.ActiveKey = nil
		return
	}
	key := r.Key().String()
	r.ActiveKey = &key
}

// ReportStatusHistory is an append-only record of a lifecycle transition.
type ReportStatusHistory struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	ReportID   string       `gorm:"size:36;not null;index" json:"report_id"`
	FromStatus ReportStatus `gorm:"size:16" json:"from_status"`
	ToStatus   ReportStatus `gorm:"size:16;not null" json:"to_status"`
	Event      string       `gorm:"size:32;not null" json:"event"`
	ActorID    uint         `json:"actor_id"`
	ActorRole  string       `gorm:"size:32" json:"actor_role"`
	Notes      string       `gorm:"type:text" json:"notes"`
	OccurredAt time.Time    `gorm:"not null;index" json:"occurred_at"`
}

// TableName keeps history rows next to the reports table.
func (ReportStatusHistory) TableName() string {
	return "report_status_history"
}
