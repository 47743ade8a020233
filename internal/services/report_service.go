package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const progressSheet = "Progress"

var progressHeaders = []string{
	"Course", "Enrollment ID", "Progress (%)", "Completed Lessons", "Total Lessons", "Enrolled At", "Completed At",
}

type reportService struct {
	progress ProgressService
	logger   *slog.Logger
}

func NewReportService(progress ProgressService, logger *slog.Logger) ReportService {
	return &reportService{
		progress: progress,
		logger:   logger,
	}
}

// ExportStudentProgress renders one row per active enrollment as an XLSX
// workbook
func (s *reportService) ExportStudentProgress(ctx context.Context, userID string) ([]byte, error) {
	progress, err := s.progress.GetStudentProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student progress: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", progressSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range progressHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(progressSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(progressHeaders), 1)
	if err := f.SetCellStyle(progressSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, item := range progress.Enrollments {
		e := item.Enrollment
		completedAt := ""
		if e.CompletedAt != nil {
			completedAt = e.CompletedAt.UTC().Format(time.RFC3339)
		}

		row := []interface{}{
			e.Course.Title,
			e.ID,
			e.Progress,
			item.CompletedLessons,
			item.TotalLessons,
			e.EnrolledAt.UTC().Format(time.RFC3339),
			completedAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(progressSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Progress report exported", "user_id", userID, "enrollments", len(progress.Enrollments))
	return buf.Bytes(), nil
}
