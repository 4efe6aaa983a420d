package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/events"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// memoryReportRepo mimics the gorm store: unique active key and compare-and-set updates.
type memoryReportRepo struct {
	mu       sync.Mutex
	reports  map[string]models.Report
	history  []models.ReportStatusHistory
	inserts  int
	findErr  error
	insertFn func(report models.Report) error
	clock    time.Time
}

func newMemoryReportRepo() *memoryReportRepo {
	return &memoryReportRepo{
		reports: make(map[string]models.Report),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryReportRepo) Find(ctx context.Context, filter repository.ReportFilter) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	result := make([]models.Report, 0, len(m.reports))
	for _, report := range m.reports {
		if filter.AcademicYear != nil && report.AcademicYear != *filter.AcademicYear {
			continue
		}
		if filter.Term != nil && report.Term != *filter.Term {
			continue
		}
		if filter.SubjectID != nil && report.SubjectID != *filter.SubjectID {
			continue
		}
		if filter.TeacherID != nil && report.TeacherID != *filter.TeacherID {
			continue
		}
		if filter.ClassID != nil && report.ClassID != *filter.ClassID {
			continue
		}
		if filter.StudentID != nil && report.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != nil && report.Status != *filter.Status {
			continue
		}
		result = append(result, report)
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *memoryReportRepo) FindByKey(ctx context.Context, key models.ReportKey) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	result := make([]models.Report, 0)
	for _, report := range m.reports {
		if report.Key() == key {
			result = append(result, report)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *memoryReportRepo) GetByID(ctx context.Context, id string) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, ok := m.reports[id]
	if !ok {
		return models.Report{}, apperror.NotFound(fmt.Errorf("report %s", id))
	}
	return report, nil
}

func (m *memoryReportRepo) Insert(ctx context.Context, report *models.Report) error {
	if err := ctx.Err(); err != nil {
		return apperror.Transient(err)
	}
	if m.insertFn != nil {
		if err := m.insertFn(*report); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkActiveKey("", report.ActiveKey); err != nil {
		return err
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	// Keep insertion order observable even when the injected clock does not move.
	m.inserts++
	if report.CreatedAt.IsZero() {
		report.CreatedAt = m.clock
	}
	report.CreatedAt = report.CreatedAt.Add(time.Duration(m.inserts) * time.Microsecond)
	m.reports[report.ID] = *report
	return nil
}

func (m *memoryReportRepo) Update(ctx context.Context, id string, expected models.ReportStatus, patch repository.ReportPatch) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, ok := m.reports[id]
	if !ok {
		return models.Report{}, apperror.NotFound(fmt.Errorf("report %s", id))
	}
	if report.Status != expected {
		return models.Report{}, apperror.Conflict(fmt.Errorf("report %s changed to %s concurrently", id, report.Status))
	}
	if err := m.checkActiveKey(id, patch.ActiveKey); err != nil {
		return models.Report{}, err
	}

	report.Status = patch.Status
	report.ActiveKey = patch.ActiveKey
	report.TotalAssignments = patch.TotalAssignments
	report.SubmittedAssignments = patch.SubmittedAssignments
	report.AverageScore = patch.AverageScore
	report.TeacherRemark = patch.TeacherRemark
	report.AdminNotes = patch.AdminNotes
	report.SubmittedAt = patch.SubmittedAt
	report.ReviewedAt = patch.ReviewedAt
	report.ReviewedBy = patch.ReviewedBy
	report.UpdatedAt = patch.UpdatedAt
	m.reports[id] = report
	return report, nil
}

func (m *memoryReportRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reports, id)
	return nil
}

func (m *memoryReportRepo) AppendHistory(ctx context.Context, entry *models.ReportStatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = uint(len(m.history) + 1)
	m.history = append(m.history, *entry)
	return nil
}

func (m *memoryReportRepo) ListHistory(ctx context.Context, reportID string) ([]models.ReportStatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.ReportStatusHistory, 0)
	for _, entry := range m.history {
		if entry.ReportID == reportID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (m *memoryReportRepo) checkActiveKey(id string, key *string) error {
	if key == nil {
		return nil
	}
	for existingID, report := range m.reports {
		if existingID != id && report.ActiveKey != nil && *report.ActiveKey == *key {
			return apperror.Conflict(errors.New("UNIQUE constraint failed: reports.active_key"))
		}
	}
	return nil
}

func (m *memoryReportRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

func sortNewestFirst(reports []models.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
}

type fakeStudentRepo struct {
	names map[uint]string
	err   error
}

func (f *fakeStudentRepo) GetByID(ctx context.Context, id uint) (models.Student, error) {
	name, ok := f.names[id]
	if !ok {
		return models.Student{}, apperror.NotFound(fmt.Errorf("student %d", id))
	}
	return models.Student{ID: id, Name: name}, nil
}

func (f *fakeStudentRepo) NamesByID(ctx context.Context, ids []uint) (map[uint]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[uint]string, len(ids))
	for _, id := range ids {
		if name, ok := f.names[id]; ok {
			result[id] = name
		}
	}
	return result, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ReportEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.ReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type reportFixture struct {
	repo      *memoryReportRepo
	audit     *memoryAuditRepo
	publisher *recordingPublisher
	reports   ReportService
	reviews   ReportReviewService
	validate  *validator.Validate
}

func newReportFixture() reportFixture {
	repo := newMemoryReportRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	auditRepo := &memoryAuditRepo{}
	audit := NewAuditService(auditRepo, testLogger())
	publisher := &recordingPublisher{}
	guard := NewSubmissionGuard(repo, validate)
	cfg := ReportServiceConfig{StoreTimeout: time.Second}

	return reportFixture{
		repo:      repo,
		audit:     auditRepo,
		publisher: publisher,
		reports:   NewReportService(repo, guard, validate, audit, publisher, cfg, testLogger()),
		reviews:   NewReportReviewService(repo, validate, audit, publisher, cfg, testLogger()),
		validate:  validate,
	}
}
