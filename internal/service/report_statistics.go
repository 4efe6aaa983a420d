package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

// ExportColumns is the fixed header of the report export.
var ExportColumns = []string{
	"Student Name",
	"Admission Number",
	"Teacher",
	"Subject",
	"Class",
	"Term",
	"Academic Year",
	"Total Assignments",
	"Submitted Assignments",
	"Average Score",
	"Status",
	"Teacher Remark",
	"Admin Notes",
	"Submitted At",
	"Reviewed At",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// SummarizeReports counts reports per status, term and academic year.
func SummarizeReports(reports []models.Report) dto.ReportSummary {
	summary := dto.ReportSummary{
		Total:    len(reports),
		ByStatus: make(map[string]int),
		ByTerm:   make(map[int]int),
		ByYear:   make(map[string]int),
	}

	for _, report := range reports {
		summary.ByStatus[string(report.Status)]++
		summary.ByTerm[report.Term]++
		summary.ByYear[report.AcademicYear]++
	}

	return summary
}

// ExportRows projects reports onto ExportColumns.
func ExportRows(reports []models.Report) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, report := range reports {
		rows = append(rows, []string{
			report.Student.Name,
			report.Student.AdmissionNumber,
			report.Teacher.Name,
			report.Subject.Name,
			report.Class.Name,
			strconv.Itoa(report.Term),
			report.AcademicYear,
			strconv.Itoa(report.TotalAssignments),
			strconv.Itoa(report.SubmittedAssignments),
			strconv.FormatFloat(report.AverageScore, 'f', 2, 64),
			string(report.Status),
			report.TeacherRemark,
			report.AdminNotes,
			formatExportTime(report.SubmittedAt),
			formatExportTime(report.ReviewedAt),
		})
	}

	return rows
}

// WriteReportsCSV writes the header line followed by one fully quoted row per report.
func WriteReportsCSV(w io.Writer, reports []models.Report) error {
	if _, err := io.WriteString(w, strings.Join(ExportColumns, ",")+"\n"); err != nil {
		return err
	}

	for _, row := range ExportRows(reports) {
		quoted := make([]string, len(row))
		for i, field := range row {
			quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, strings.Join(quoted, ",")+"\n"); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}

	return nil
}

func formatExportTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(exportTimeLayout)
}
