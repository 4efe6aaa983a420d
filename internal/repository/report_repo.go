package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

// ReportFilter narrows report queries. Every set field is AND-combined.
type ReportFilter struct {
	AcademicYear *string
	Term         *int
	SubjectID    *uint
	TeacherID    *uint
	ClassID      *uint
	StudentID    *uint
	Status       *models.ReportStatus
}

// ReportPatch carries the columns a lifecycle transition or correction may change.
type ReportPatch struct {
	Status               models.ReportStatus
	ActiveKey            *string
	TotalAssignments     int
	SubmittedAssignments int
	AverageScore         float64
	TeacherRemark        string
	AdminNotes           string
	SubmittedAt          *time.Time
	ReviewedAt           *time.Time
	ReviewedBy           *uint
	UpdatedAt            time.Time
}

// PatchFromReport captures the mutable state of report.
func PatchFromReport(report models.Report) ReportPatch {
	return ReportPatch{
		Status:               report.Status,
		ActiveKey:            report.ActiveKey,
		TotalAssignments:     report.TotalAssignments,
		SubmittedAssignments: report.SubmittedAssignments,
		AverageScore:         report.AverageScore,
		TeacherRemark:        report.TeacherRemark,
		AdminNotes:           report.AdminNotes,
		SubmittedAt:          report.SubmittedAt,
		ReviewedAt:           report.ReviewedAt,
		ReviewedBy:           report.ReviewedBy,
		UpdatedAt:            report.UpdatedAt,
	}
}

func (p ReportPatch) columns() map[string]interface{} {
	return map[string]interface{}{
		"status":                p.Status,
		"active_key":            p.ActiveKey,
		"total_assignments":     p.TotalAssignments,
		"submitted_assignments": p.SubmittedAssignments,
		"average_score":         p.AverageScore,
		"teacher_remark":        p.TeacherRemark,
		"admin_notes":           p.AdminNotes,
		"submitted_at":          p.SubmittedAt,
		"reviewed_at":           p.ReviewedAt,
		"reviewed_by":           p.ReviewedBy,
		"updated_at":            p.UpdatedAt,
	}
}

// ReportRepository is the typed store for progress reports. It holds no business rules.
type ReportRepository interface {
	Find(ctx context.Context, filter ReportFilter) ([]models.Report, error)
	FindByKey(ctx context.Context, key models.ReportKey) ([]models.Report, error)
	GetByID(ctx context.Context, id string) (models.Report, error)
	Insert(ctx context.Context, report *models.Report) error
	// Update applies patch only while the stored status still equals expected.
	Update(ctx context.Context, id string, expected models.ReportStatus, patch ReportPatch) (models.Report, error)
	Delete(ctx context.Context, id string) error
	AppendHistory(ctx context.Context, entry *models.ReportStatusHistory) error
	ListHistory(ctx context.Context, reportID string) ([]models.ReportStatusHistory, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository instantiates the gorm-backed report store.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Report{}).
		Preload("Student").
		Preload("Teacher").
		Preload("Subject").
		Preload("Class")
}

func (r *reportRepository) Find(ctx context.Context, filter ReportFilter) ([]models.Report, error) {
	query := r.baseQuery(ctx)

	if filter.AcademicYear != nil && strings.TrimSpace(*filter.AcademicYear) != "" {
		query = query.Where("academic_year = ?", strings.TrimSpace(*filter.AcademicYear))
	}
	if filter.Term != nil {
		query = query.Where("term = ?", *filter.Term)
	}
	if filter.SubjectID != nil {
		query = query.Where("subject_id = ?", *filter.SubjectID)
	}
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var reports []models.Report
	if err := query.Order("created_at DESC").Order("id").Find(&reports).Error; err != nil {
		return nil, translateError(err)
	}

	return reports, nil
}

func (r *reportRepository) FindByKey(ctx context.Context, key models.ReportKey) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).
		Where("student_id = ?", key.StudentID).
		Where("subject_id = ?", key.SubjectID).
		Where("term = ?", key.Term).
		Where("academic_year = ?", strings.TrimSpace(key.AcademicYear)).
		Where("teacher_id = ?", key.TeacherID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, translateError(err)
	}

	return reports, nil
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (models.Report, error) {
	var report models.Report
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return models.Report{}, translateError(err)
	}

	return report, nil
}

func (r *reportRepository) Insert(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *reportRepository) Update(ctx context.Context, id string, expected models.ReportStatus, patch ReportPatch) (models.Report, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", id).
		Where("status = ?", expected).
		Updates(patch.columns())
	if result.Error != nil {
		return models.Report{}, translateError(result.Error)
	}

	if result.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return models.Report{}, err
		}
		return models.Report{}, apperror.Conflict(fmt.Errorf("report %s changed to %s concurrently", id, current.Status))
	}

	return r.GetByID(ctx, id)
}

// Delete removes the report row. Its status history stays behind for auditing.
func (r *reportRepository) Delete(ctx context.Context, id string) error {
	return translateError(r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Report{}).Error)
}

func (r *reportRepository) AppendHistory(ctx context.Context, entry *models.ReportStatusHistory) error {
	return translateError(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *reportRepository) ListHistory(ctx context.Context, reportID string) ([]models.ReportStatusHistory, error) {
	var entries []models.ReportStatusHistory
	if err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, translateError(err)
	}

	return entries, nil
}
