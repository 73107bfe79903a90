// Package export renders validation outcomes as XLSX workbooks for review.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/manikumarthati/extractionWithValidation/internal/pipeline"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
	"github.com/manikumarthati/extractionWithValidation/internal/store"
)

// Service produces XLSX bytes from pipeline reports and the audit store.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportReportXLSX writes one workbook for a processed document: a Fields
// sheet with the final value of every declared field per page, and an Audit
// sheet with the per-round trail.
func (s *Service) ExportReportXLSX(rep pipeline.Report, sch *schema.Schema) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()

	if err := s.writeFieldsSheet(f, rep, sch); err != nil {
		return nil, err
	}
	if err := s.writeAuditSheet(f, rep); err != nil {
		return nil, err
	}
	// Drop the default sheet excelize creates.
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.report.ok",
		"document", rep.DocumentPath,
		"pages", len(rep.Pages),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeFieldsSheet(f *excelize.File, rep pipeline.Report, sch *schema.Schema) error {
	const sheet = "Fields"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Page", "Field", "Declared Type", "Value"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	for _, page := range rep.Pages {
		if page.Err != nil {
			write(1, page.Page+1)
			write(2, "(page failed)")
			write(4, page.Err.Error())
			row++
			continue
		}
		for _, field := range sch.Fields {
			if field.Type == schema.TypeObject || field.Type == schema.TypeArrayOfObject {
				continue
			}
			if field.ParentTable != "" {
				// Table columns expand per row below.
				continue
			}
			v, _ := page.ExtractedData.Get(field.Path)
			write(1, page.Page+1)
			write(2, field.Path)
			write(3, string(field.Type))
			write(4, cellValue(v))
			row++
		}
		for _, table := range sch.Tables() {
			rows, ok := page.ExtractedData.Table(table.Path)
			if !ok {
				continue
			}
			for i := range rows {
				for _, col := range sch.Columns(table.Path) {
					v, _ := page.ExtractedData.Get(fmt.Sprintf("%s[%d].%s", table.Path, i, lastSegment(col.Path)))
					write(1, page.Page+1)
					write(2, fmt.Sprintf("%s[%d].%s", table.Path, i, lastSegment(col.Path)))
					write(3, string(col.Type))
					write(4, cellValue(v))
					row++
				}
			}
		}
	}
	return nil
}

func (s *Service) writeAuditSheet(f *excelize.File, rep pipeline.Report) error {
	const sheet = "Audit"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Page", "Round", "Accuracy", "Shift Pattern", "Applied", "Skipped", "Latency (ms)", "Outcome"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	for _, page := range rep.Pages {
		for _, r := range page.AuditTrail {
			write(1, page.Page+1)
			write(2, r.Index)
			write(3, r.AccuracyEstimate)
			write(4, string(r.ShiftPattern))
			write(5, len(r.AppliedOps))
			write(6, len(r.SkippedOps))
			write(7, r.ModelLatency.Milliseconds())
			if r.Index == page.RoundsCompleted {
				write(8, string(page.TerminationReason))
			}
			row++
		}
	}
	return nil
}

// ExportSessionsXLSX writes the audit store's session index as a workbook.
func (s *Service) ExportSessionsXLSX(ctx context.Context, st *store.AuditStore) ([]byte, error) {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Sessions"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Session", "Document", "Page", "Started", "Finished", "Rounds", "Outcome", "Accuracy"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, sess := range sessions {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, sess.ID)
		write(2, sess.DocumentPath)
		write(3, sess.Page+1)
		write(4, sess.StartedAt.Format(time.RFC3339))
		write(5, sess.FinishedAt.Format(time.RFC3339))
		write(6, sess.RoundsCompleted)
		write(7, string(sess.Reason))
		write(8, sess.FinalAccuracy)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.sessions.ok", "sessions", len(sessions), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func cellValue(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
