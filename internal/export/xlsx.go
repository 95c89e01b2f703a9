package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rmaffei/rotafoto/internal/errors"
)

// sheetName is the single worksheet of the spreadsheet export.
const sheetName = "Routes"

// xlsxColumns is the flattened column layout; thumbnails are dropped.
var xlsxColumns = []string{
	"Latitude", "Longitude", "index", "name", "description",
	"status", "fileSize", "fileType", "date", "predictionDate",
}

// ExportXLSX writes the spreadsheet: one "Routes" sheet, scalar
// columns only, coordinates forced numeric (0 when unavailable).
func (s *Service) ExportXLSX() (*Result, error) {
	records := s.sorted()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "naming worksheet", err)
	}

	for col, header := range xlsxColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "addressing header cell", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "writing header", err)
		}
	}

	for row, rec := range records {
		lat, lon := coordNumbers(rec.Coordinate)
		values := []interface{}{
			lat, lon, rec.Index, rec.Name, rec.Description,
			string(rec.Status), rec.FileSize, rec.FileType, rec.Date, rec.PredictionDate,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, errors.Wrap(errors.ErrExportFailed, "addressing cell", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, errors.Wrap(errors.ErrExportFailed,
					fmt.Sprintf("writing row %d", row+2), err)
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "J", 30); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "sizing columns", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "encoding spreadsheet", err)
	}

	return s.writeArtifact(datedName("rotas", "xlsx"), buf.Bytes(), len(records))
}
