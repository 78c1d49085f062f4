package export

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/renqiu/gohomework"
)

const answersSheet = "Answers"

// WriteXLSX writes the answers workbook for a successful result and
// returns the file path: a bold header row, a bold stem row per
// problem that has one, then one row per subquestion answer.
func WriteXLSX(dir, docPath string, res *gohomework.Result) (string, error) {
	path := WorkbookPath(dir, docPath)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", answersSheet); err != nil {
		return "", fmt.Errorf("renaming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("creating style: %w", err)
	}

	header := []any{"大题", "小问", "题目", "答案", "思路"}
	if err := f.SetSheetRow(answersSheet, "A1", &header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetCellStyle(answersSheet, "A1", "E1", bold); err != nil {
		return "", fmt.Errorf("styling header: %w", err)
	}

	row := 2
	for _, pr := range res.Results {
		if strings.TrimSpace(pr.ProblemText) != "" {
			if err := writeRow(f, row, []any{pr.ProblemID, "", pr.ProblemText}); err != nil {
				return "", err
			}
			start, _ := excelize.CoordinatesToCellName(1, row)
			end, _ := excelize.CoordinatesToCellName(5, row)
			if err := f.SetCellStyle(answersSheet, start, end, bold); err != nil {
				return "", fmt.Errorf("styling stem row: %w", err)
			}
			row++
		}
		for _, rec := range pr.Subanswers {
			cells := []any{rec.ProblemID, rec.SubID, rec.SubText, rec.Answer, rec.Reason}
			if err := writeRow(f, row, cells); err != nil {
				return "", err
			}
			row++
		}
	}

	if err := f.SetColWidth(answersSheet, "C", "E", 50); err != nil {
		return "", fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}

	slog.Info("export: workbook written", "path", path, "rows", row-1)
	return path, nil
}

func writeRow(f *excelize.File, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(answersSheet, cell, &cells); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}
