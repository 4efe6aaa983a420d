package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

func newBulkFixture(students *fakeStudentRepo, batchSize int) (reportFixture, ReportBulkService) {
	fx := newReportFixture()
	bulk := NewReportBulkService(fx.reports, students, ReportBulkConfig{BatchSize: batchSize}, testLogger())
	return fx, bulk
}

func TestReportBulkServiceEmptyInput(t *testing.T) {
	_, bulk := newBulkFixture(&fakeStudentRepo{}, 10)

	result := bulk.SubmitBulk(context.Background(), teacherActor, nil)
	require.NotNil(t, result.Successful)
	require.NotNil(t, result.Failed)
	require.Empty(t, result.Successful)
	require.Empty(t, result.Failed)
}

func TestReportBulkServiceRecordsDuplicatesWithoutAborting(t *testing.T) {
	students := &fakeStudentRepo{names: map[uint]string{}}
	for id := uint(1); id <= 12; id++ {
		students.names[id] = fmt.Sprintf("Student %02d", id)
	}
	fx, bulk := newBulkFixture(students, 10)
	ctx := context.Background()

	existing := map[int]string{}
	for _, index := range []int{4, 8} {
		created, err := fx.reports.Create(ctx, teacherActor, mathReport(uint(index+1)))
		require.NoError(t, err)
		existing[index] = created.ID
	}

	input := make([]dto.ReportCreateRequest, 0, 12)
	for id := uint(1); id <= 12; id++ {
		input = append(input, mathReport(id))
	}

	result := bulk.SubmitBulk(ctx, teacherActor, input)
	require.Len(t, result.Successful, 10)
	require.Len(t, result.Failed, 2)
	require.Equal(t, len(input), len(result.Successful)+len(result.Failed))

	require.Equal(t, "Student 05", result.Failed[0].StudentName)
	require.Equal(t, "duplicate", result.Failed[0].Error)
	require.Equal(t, "duplicate", result.Failed[0].Kind)
	require.Equal(t, existing[4], result.Failed[0].ExistingID)
	require.Equal(t, "Student 09", result.Failed[1].StudentName)
	require.Equal(t, "duplicate", result.Failed[1].Error)
	require.Equal(t, existing[8], result.Failed[1].ExistingID)

	require.Equal(t, "Student 01", result.Successful[0].StudentName)
	require.Equal(t, "Student 12", result.Successful[9].StudentName)
	for _, item := range result.Successful {
		require.NotEmpty(t, item.ReportID)
	}
	require.Equal(t, 12, fx.repo.count())
}

func TestReportBulkServiceDuplicatesWithinInput(t *testing.T) {
	fx, bulk := newBulkFixture(&fakeStudentRepo{}, 10)

	input := []dto.ReportCreateRequest{mathReport(1), mathReport(1), mathReport(1)}
	result := bulk.SubmitBulk(context.Background(), teacherActor, input)

	require.Len(t, result.Successful, 1)
	require.Len(t, result.Failed, 2)
	for _, failure := range result.Failed {
		require.Equal(t, "duplicate", failure.Error)
		require.Equal(t, "student #1", failure.StudentName)
	}
	require.Equal(t, 1, fx.repo.count())
}

func TestReportBulkServiceNamesAndItemErrors(t *testing.T) {
	students := &fakeStudentRepo{names: map[uint]string{2: "Budi"}}
	_, bulk := newBulkFixture(students, 10)

	named := mathReport(1)
	named.StudentName = "Ani"
	invalid := mathReport(2)
	invalid.Term = 9
	unknown := mathReport(3)

	result := bulk.SubmitBulk(context.Background(), teacherActor, []dto.ReportCreateRequest{named, invalid, unknown})
	require.Len(t, result.Successful, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "Ani", result.Successful[0].StudentName)
	require.Equal(t, "student #3", result.Successful[1].StudentName)
	require.Equal(t, "Budi", result.Failed[0].StudentName)
	require.Equal(t, "validation", result.Failed[0].Kind)
	require.Contains(t, result.Failed[0].Error, "validation failed")
}

func TestReportBulkServiceNameLookupFailureFallsBack(t *testing.T) {
	_, bulk := newBulkFixture(&fakeStudentRepo{err: errors.New("db down")}, 10)

	result := bulk.SubmitBulk(context.Background(), teacherActor, []dto.ReportCreateRequest{mathReport(4)})
	require.Len(t, result.Successful, 1)
	require.Equal(t, "student #4", result.Successful[0].StudentName)
}

func TestReportBulkServiceStoreFailureIsPerItem(t *testing.T) {
	fx, bulk := newBulkFixture(&fakeStudentRepo{}, 10)
	fx.repo.insertFn = func(report models.Report) error {
		if report.StudentID == 2 {
			return apperror.Transient(context.DeadlineExceeded)
		}
		return nil
	}

	result := bulk.SubmitBulk(context.Background(), teacherActor, []dto.ReportCreateRequest{mathReport(1), mathReport(2), mathReport(3)})
	require.Len(t, result.Successful, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "transient", result.Failed[0].Kind)
	require.Equal(t, "student #2", result.Failed[0].StudentName)
}

// blockingReportService records how many creates run at once.
type blockingReportService struct {
	ReportService
	mu       sync.Mutex
	inFlight int
	peak     int
	order    []uint
	calls    atomic.Int32
}

func (b *blockingReportService) Create(ctx context.Context, actor Actor, payload dto.ReportCreateRequest) (dto.ReportResponse, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.peak {
		b.peak = b.inFlight
	}
	b.order = append(b.order, payload.StudentID)
	b.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	b.calls.Add(1)

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return dto.ReportResponse{ID: fmt.Sprintf("r-%d", payload.StudentID)}, nil
}

func TestReportBulkServiceBatchesSequentially(t *testing.T) {
	stub := &blockingReportService{}
	bulk := NewReportBulkService(stub, &fakeStudentRepo{}, ReportBulkConfig{BatchSize: 4}, testLogger())

	input := make([]dto.ReportCreateRequest, 0, 10)
	for id := uint(1); id <= 10; id++ {
		input = append(input, mathReport(id))
	}

	result := bulk.SubmitBulk(context.Background(), teacherActor, input)
	require.Len(t, result.Successful, 10)
	require.Equal(t, int32(10), stub.calls.Load())
	require.LessOrEqual(t, stub.peak, 4)

	// Every item of a batch starts before any item of the next batch.
	batchOf := func(id uint) int { return int(id-1) / 4 }
	for i := 1; i < len(stub.order); i++ {
		require.LessOrEqual(t, batchOf(stub.order[i-1]), batchOf(stub.order[i]))
	}
	for i, item := range result.Successful {
		require.Equal(t, fmt.Sprintf("r-%d", i+1), item.ReportID)
	}
}
