package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// ReportCreateRequest is a teacher submission of a progress report.
type ReportCreateRequest struct {
	StudentID            uint    `json:"student_id" validate:"required,gt=0"`
	StudentName          string  `json:"student_name" validate:"omitempty,max=255"`
	TeacherID            uint    `json:"teacher_id" validate:"required,gt=0"`
	SubjectID            uint    `json:"subject_id" validate:"required,gt=0"`
	ClassID              uint    `json:"class_id" validate:"required,gt=0"`
	Term                 int     `json:"term" validate:"required,oneof=1 2 3"`
	AcademicYear         string  `json:"academic_year" validate:"required,min=4,max=16"`
	TotalAssignments     int     `json:"total_assignments" validate:"gte=0"`
	SubmittedAssignments int     `json:"submitted_assignments" validate:"gte=0,ltefield=TotalAssignments"`
	AverageScore         float64 `json:"average_score" validate:"gte=0,lte=100"`
	TeacherRemark        string  `json:"teacher_remark" validate:"omitempty,max=5000"`
	Draft                bool    `json:"draft"`
}

// Key returns the reporting period targeted by the request.
func (r ReportCreateRequest) Key() models.ReportKey {
	return models.ReportKey{
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID,
		Term:         r.Term,
		AcademicYear: strings.TrimSpace(r.AcademicYear),
		TeacherID:    r.TeacherID,
	}
}

// ReportBulkRequest wraps many report submissions.
type ReportBulkRequest struct {
	Reports []ReportCreateRequest `json:"reports" validate:"max=1000"`
}

// ReportResubmitRequest corrects a rejected report before sending it again.
type ReportResubmitRequest struct {
	TotalAssignments     *int     `json:"total_assignments" validate:"omitempty,gte=0"`
	SubmittedAssignments *int     `json:"submitted_assignments" validate:"omitempty,gte=0"`
	AverageScore         *float64 `json:"average_score" validate:"omitempty,gte=0,lte=100"`
	TeacherRemark        *string  `json:"teacher_remark" validate:"omitempty,max=5000"`
}

// ReportReviewRequest is an administrator decision on a submitted report.
type ReportReviewRequest struct {
	Action string  `json:"action" validate:"required,oneof=approve reject"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}

// ReportGuardResponse tells the caller whether a period already has a report.
type ReportGuardResponse struct {
	Exists      bool   `json:"exists"`
	CanResubmit bool   `json:"can_resubmit"`
	ExistingID  string `json:"existing_id,omitempty"`
}

// ReportResponse serializes a report for API clients.
type ReportResponse struct {
	ID                   string     `json:"id"`
	StudentID            uint       `json:"student_id"`
	StudentName          string     `json:"student_name,omitempty"`
	AdmissionNumber      string     `json:"admission_number,omitempty"`
	TeacherID            uint       `json:"teacher_id"`
	TeacherName          string     `json:"teacher_name,omitempty"`
	SubjectID            uint       `json:"subject_id"`
	SubjectName          string     `json:"subject_name,omitempty"`
	ClassID              uint       `json:"class_id"`
	ClassName            string     `json:"class_name,omitempty"`
	Term                 int        `json:"term"`
	AcademicYear         string     `json:"academic_year"`
	TotalAssignments     int        `json:"total_assignments"`
	SubmittedAssignments int        `json:"submitted_assignments"`
	AverageScore         float64    `json:"average_score"`
	TeacherRemark        string     `json:"teacher_remark"`
	AdminNotes           string     `json:"admin_notes"`
	Status               string     `json:"status"`
	ReviewedBy           *uint      `json:"reviewed_by"`
	CreatedAt            time.Time  `json:"created_at"`
	SubmittedAt          *time.Time `json:"submitted_at"`
	ReviewedAt           *time.Time `json:"reviewed_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ReportHistoryResponse serializes one status history entry.
type ReportHistoryResponse struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Event      string    `json:"event"`
	ActorID    uint      `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Notes      string    `json:"notes"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReportDetailResponse is a report together with its status history.
type ReportDetailResponse struct {
	ReportResponse
	History []ReportHistoryResponse `json:"history"`
}

// BulkSuccessItem records a report created by a bulk submission.
type BulkSuccessItem struct {
	StudentName string `json:"student_name"`
	ReportID    string `json:"report_id"`
}

// BulkFailureItem records a bulk item that could not be created.
type BulkFailureItem struct {
	StudentName string `json:"student_name"`
	Error       string `json:"error"`
	Kind        string `json:"kind"`
	ExistingID  string `json:"existing_id,omitempty"`
}

// ReportBulkResponse is the per-item ledger of a bulk submission.
type ReportBulkResponse struct {
	Successful []BulkSuccessItem `json:"successful"`
	Failed     []BulkFailureItem `json:"failed"`
}

// ReportSummary counts reports per status, term and academic year.
type ReportSummary struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByTerm      map[int]int    `json:"by_term"`
	ByYear      map[string]int `json:"by_year"`
	GeneratedAt time.Time      `json:"generated_at"`
	CacheHit    bool           `json:"cache_hit"`
}

// NewReportResponse converts a report model into a DTO.
func NewReportResponse(model models.Report) ReportResponse {
	return ReportResponse{
		ID:                   model.ID,
		StudentID:            model.StudentID,
		StudentName:          model.Student.Name,
		AdmissionNumber:      model.Student.AdmissionNumber,
		TeacherID:            model.TeacherID,
		TeacherName:          model.Teacher.Name,
		SubjectID:            model.SubjectID,
		SubjectName:          model.Subject.Name,
		ClassID:              model.ClassID,
		ClassName:            model.Class.Name,
		Term:                 model.Term,
		AcademicYear:         model.AcademicYear,
		TotalAssignments:     model.TotalAssignments,
		SubmittedAssignments: model.SubmittedAssignments,
		AverageScore:         model.AverageScore,
		TeacherRemark:        model.TeacherRemark,
		AdminNotes:           model.AdminNotes,
		Status:               string(model.Status),
		ReviewedBy:           model.ReviewedBy,
		CreatedAt:            model.CreatedAt,
		SubmittedAt:          model.SubmittedAt,
		ReviewedAt:           model.ReviewedAt,
		UpdatedAt:            model.UpdatedAt,
	}
}

// NewReportResponseSlice converts report models into DTOs.
func NewReportResponseSlice(reports []models.Report) []ReportResponse {
	responses := make([]ReportResponse, 0, len(reports))
	for _, report := range reports {
		responses = append(responses, NewReportResponse(report))
	}

	return responses
}

// NewReportDetailResponse combines a report with its history.
func NewReportDetailResponse(model models.Report, history []models.ReportStatusHistory) ReportDetailResponse {
	entries := make([]ReportHistoryResponse, 0, len(history))
	for _, entry := range history {
		entries = append(entries, ReportHistoryResponse{
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Event:      entry.Event,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Notes:      entry.Notes,
			OccurredAt: entry.OccurredAt,
		})
	}

	return ReportDetailResponse{
		ReportResponse: NewReportResponse(model),
		History:        entries,
	}
}
