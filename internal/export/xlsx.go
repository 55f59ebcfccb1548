package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/models"
	"github.com/tealeg/xlsx/v3"
)

const (
	// ContentType is the Office Open XML spreadsheet MIME type
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// AnalysisColumn holds the raw analysis text in exported sheets
	AnalysisColumn = "image_analysis"

	sheetName = "Flagged"
)

// ErrEmptySelection is returned when no row is included
var ErrEmptySelection = errors.New("no rows selected for export")

// BuildXLSX writes the included rows, in the order given, to a single-sheet
// workbook. The header uses the source column names of mapping followed by
// AnalysisColumn.
func BuildXLSX(mapping models.ColumnMapping, rows []models.Row) ([]byte, error) {
	var selected []models.Row
	for _, row := range rows {
		if row.Included {
			selected = append(selected, row)
		}
	}
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, role := range models.Roles {
		header.AddCell().SetString(mapping.Column(role))
	}
	header.AddCell().SetString(AnalysisColumn)

	for _, row := range selected {
		r := sheet.AddRow()
		for _, v := range []string{row.URL, row.ImageURL, row.PlaceID, row.RowID, row.Analysis} {
			r.AddCell().SetString(v)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename names a download after the time of export
func Filename(now time.Time) string {
	return fmt.Sprintf("flagged_rows_%s.xlsx", now.Format("20060102_150405"))
}
