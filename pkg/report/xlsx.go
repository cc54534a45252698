package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/logvet/logvet/internal/model"
)

// WriteXLSX writes the run as an Excel workbook with a summary sheet
// and one row per check.
func WriteXLSX(path string, run *model.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	const checks = "Checks"

	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("failed to build xlsx report: %w", err)
	}
	if _, err := f.NewSheet(checks); err != nil {
		return fmt.Errorf("failed to build xlsx report: %w", err)
	}

	passed, failed, skipped := run.Counts()
	summaryRows := [][]interface{}{
		{"Suite", run.Suite},
		{"Run ID", run.RunID},
		{"Started", run.Started.Format("2006-01-02 15:04:05")},
		{"Duration (s)", run.Duration.Seconds()},
		{"Examples", len(run.Examples)},
		{"Examples failed", run.FailedExamples()},
		{"Examples excluded", len(run.Excluded)},
		{"Checks passed", passed},
		{"Checks failed", failed},
		{"Checks skipped", skipped},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("failed to build xlsx report: %w", err)
		}
	}

	header := []interface{}{"Example", "Check", "Kind", "Status", "Value", "Target", "Tolerance", "Line", "Message"}
	if err := f.SetSheetRow(checks, "A1", &header); err != nil {
		return fmt.Errorf("failed to build xlsx report: %w", err)
	}
	rowIdx := 2
	for i := range run.Examples {
		ex := &run.Examples[i]
		for _, check := range ex.Checks {
			row := []interface{}{
				ex.Example,
				check.Name,
				check.Kind.String(),
				check.Status.String(),
				nil, nil, nil, nil,
				check.Message,
			}
			if check.Kind == model.KindValue {
				if check.Found {
					row[4] = check.Value
				}
				row[5] = check.Target
				row[6] = check.Tolerance
			}
			if check.Line > 0 {
				row[7] = check.Line
			}
			cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
			if err := f.SetSheetRow(checks, cell, &row); err != nil {
				return fmt.Errorf("failed to build xlsx report: %w", err)
			}
			rowIdx++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write xlsx report: %w", err)
	}
	return nil
}
