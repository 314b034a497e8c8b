package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

const reportsSheet = "Reports"

// WriteReportsXLSX — те же колонки, что в CSV; created_at в читаемом виде в loc.
func WriteReportsXLSX(w io.Writer, rows []models.ExportRow, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reportsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for col, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStr(reportsSheet, cell, h); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			r.ID, r.UserID, r.ClassName, r.SchoolName, r.Period, string(r.Status), r.Score, r.Meta,
			r.CreatedAt.In(loc).Format("02.01.2006 15:04"),
		}
		if err := f.SetSheetRow(reportsSheet, cell, &values); err != nil {
			return fmt.Errorf("set row %d: %w", i+2, err)
		}
	}
	if err := ApplyDefaultExcelFormatting(f, reportsSheet); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	return f.Write(w)
}
