package export

import (
	"io"

	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Records"

// writeXLSX writes a single-sheet workbook. Numbers stay numeric cells.
func writeXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			if v.Type == models.TypeNumber {
				cells[i] = v.Num
			} else {
				cells[i] = cell(v)
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, axis, &cells); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
