// Package export writes a reshaped table to a spreadsheet or CSV file.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/Sternrassler/wdi-report/pkg/table"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions other than .xlsx and .csv.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// DefaultSheet is the worksheet that holds the table in xlsx output.
const DefaultSheet = "data"

// YearHeader labels the first column.
const YearHeader = "year"

// Write saves t to path. The format follows the extension: .xlsx or .csv.
func Write(t *table.Table, path string) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		err = WriteXLSX(t, path, DefaultSheet)
	case ".csv":
		err = writeCSVFile(t, path)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return err
	}

	logger := logging.NewLogger("export")
	logger.Info().
		Str("path", path).
		Int("rows", t.Len()).
		Int("columns", t.Width()).
		Msg("Table exported")
	return nil
}

// Header returns the header row: the year column followed by the codes.
func Header(t *table.Table) []string {
	return append([]string{YearHeader}, t.Codes()...)
}

// WriteXLSX writes t to a single worksheet with a bold header row. Missing
// cells are left blank.
func WriteXLSX(t *table.Table, path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = DefaultSheet
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := Header(t)
	for i, name := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("header %s: %w", cell, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	codes := t.Codes()
	for r, year := range t.Years() {
		row := r + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheet, cell, year); err != nil {
			return fmt.Errorf("cell %s: %w", cell, err)
		}
		for c, code := range codes {
			v, ok := t.Value(year, code)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}

	if len(header) > 1 {
		lastCol, _ := excelize.ColumnNumberToName(len(header))
		if err := f.SetColWidth(sheet, "B", lastCol, 12); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save table %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes t as comma-separated values. Missing cells are empty.
func WriteCSV(t *table.Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(t)); err != nil {
		return err
	}

	codes := t.Codes()
	record := make([]string, len(codes)+1)
	for _, year := range t.Years() {
		record[0] = strconv.Itoa(year)
		for i, code := range codes {
			record[i+1] = ""
			if v, ok := t.Value(year, code); ok {
				record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeCSVFile(t *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table %s: %w", path, err)
	}

	if err := WriteCSV(t, f); err != nil {
		f.Close()
		return fmt.Errorf("write table %s: %w", path, err)
	}
	return f.Close()
}
