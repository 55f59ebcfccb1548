package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/tealeg/xlsx/v3"
)

// Format identifies a source encoding
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat guesses the format from a file name, falling back to the
// content type and finally to the leading bytes
func DetectFormat(name, contentType string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	}

	switch {
	case strings.Contains(contentType, "spreadsheetml"):
		return FormatXLSX, nil
	case strings.Contains(contentType, "text/csv"):
		return FormatCSV, nil
	case strings.Contains(contentType, "parquet"):
		return FormatParquet, nil
	}

	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, []byte("PAR1")):
		return FormatParquet, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// ReadTable decodes data in the given format
func ReadTable(data []byte, format Format) (*Table, error) {
	switch format {
	case FormatXLSX:
		return readXLSX(data)
	case FormatCSV:
		return readCSV(data)
	case FormatParquet:
		return readParquet(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// readXLSX reads the first sheet; its first row is the header
func readXLSX(data []byte) (*Table, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	if len(wb.Sheets) == 0 {
		return &Table{}, nil
	}

	sheet := wb.Sheets[0]
	defer sheet.Close()

	var records [][]string
	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		var record []string
		err := row.ForEachCell(func(cell *xlsx.Cell) error {
			record = append(record, cell.String())
			return nil
		})
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet.Name, err)
	}

	slog.Debug("Read Excel sheet", "sheet", sheet.Name, "rows", len(records))
	return newTable(records), nil
}

func readCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return newTable(records), nil
}

// readParquet reads a flat parquet file; nested columns are ignored
func readParquet(data []byte) (*Table, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	leaves := pf.Schema().Columns()
	header := make([]string, len(leaves))
	for i, path := range leaves {
		header[i] = strings.Join(path, ".")
	}

	records := [][]string{header}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	rows := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			record := make([]string, len(header))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(record) || v.IsNull() {
					continue
				}
				record[col] = v.String()
			}
			records = append(records, record)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return newTable(records), nil
}
