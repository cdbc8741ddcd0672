package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportTable flattens the detailed report into a rectangular table:
// one header row, one row per participant in join order. The output is
// deterministic for the same stored data.
//
// Columns: Name, Username, then Answer/Status/Time per question, then
// Total Correct, Total Questions, Percentage, First Answer Time.
// Unanswered slots render as "No Answer", "Wrong", "N/A".
func (s *Service) ExportTable(ctx context.Context, examID int64) ([][]string, error) {
	d, err := s.DetailedReport(ctx, examID)
	if err != nil {
		return nil, err
	}

	header := []string{"Name", "Username"}
	for i := range d.Questions {
		header = append(header,
			fmt.Sprintf("Q%d Answer", i+1),
			fmt.Sprintf("Q%d Status", i+1),
			fmt.Sprintf("Q%d Time", i+1),
		)
	}
	header = append(header, "Total Correct", "Total Questions", "Percentage", "First Answer Time")

	table := [][]string{header}
	for _, r := range d.Rows {
		row := []string{displayName(r.Participant.FirstName), displayName(r.Participant.Username)}
		var first *time.Time
		for _, c := range r.Cells {
			if !c.Answered {
				row = append(row, "No Answer", "Wrong", "N/A")
				continue
			}
			status := "Wrong"
			if c.Correct {
				status = "Correct"
			}
			row = append(row, c.OptionText, status, c.AnsweredAt.Format(timeFormat))
			if first == nil || c.AnsweredAt.Before(*first) {
				t := c.AnsweredAt
				first = &t
			}
		}
		firstTime := "N/A"
		if first != nil {
			firstTime = first.Format(timeFormat)
		}
		row = append(row,
			fmt.Sprintf("%d", r.Correct),
			fmt.Sprintf("%d", len(d.Questions)),
			percentage(r.Correct, len(d.Questions)),
			firstTime,
		)
		table = append(table, row)
	}
	return table, nil
}

// ExportCSV serializes the export table as CSV.
func (s *Service) ExportCSV(ctx context.Context, examID int64) ([]byte, error) {
	table, err := s.ExportTable(ctx, examID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(table); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX serializes the export table as a workbook with one
// "Results" sheet.
func (s *Service) ExportXLSX(ctx context.Context, examID int64) ([]byte, error) {
	table, err := s.ExportTable(ctx, examID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Results"); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sheet = "Results"
	for r, row := range table {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(table[0]))
	_ = f.SetColWidth(sheet, "A", last, 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
