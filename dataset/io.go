package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// missingMarkers are the textual spellings treated as a missing value.
var missingMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"NA":   true,
	"null": true,
}

// ParseCell turns raw text into a cell: missing marker, number or string.
func ParseCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if missingMarkers[s] {
		return Missing()
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(v)
	}
	return String(s)
}

// Load reads a CSV or XLSX file chosen by extension.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return Read(f, path)
}

// Read decodes r as CSV or XLSX according to the extension of filename.
func Read(r io.Reader, filename string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return nil, errors.NewValueNotSupportedError("dataset", ext,
			fmt.Sprintf("unsupported file type '%s', expected .csv or .xlsx", ext))
	}
}

// ReadCSV reads a table whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read CSV")
	}
	return fromRecords("dataset.ReadCSV", records)
}

// ReadXLSX reads the first sheet of a workbook whose first row is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewValueError("dataset.ReadXLSX", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	return fromRecords("dataset.ReadXLSX", rows)
}

func fromRecords(op string, records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.NewValueError(op, "missing header row")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			return nil, errors.NewValueError(op, fmt.Sprintf("empty column name at position %d", i))
		}
	}

	rows := make([][]Cell, 0, len(records)-1)
	for lineNo, rec := range records[1:] {
		if len(rec) > len(header) {
			return nil, errors.NewValueError(op,
				fmt.Sprintf("row %d has %d values but the header has %d columns", lineNo+1, len(rec), len(header)))
		}
		row := make([]Cell, len(header))
		for j, raw := range rec {
			row[j] = ParseCell(raw)
		}
		rows = append(rows, row)
	}
	return NewTable(header, rows)
}

// WriteCSV writes the table with a header record. Missing cells are empty.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns()); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	record := make([]string, len(t.names))
	for i := 0; i < t.nRows; i++ {
		for j, name := range t.names {
			record[j] = t.cols[name][i].String()
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "write CSV row %d", i)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the table to a single-sheet workbook.
func WriteXLSX(w io.Writer, t *Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return errors.Wrap(err, "rename sheet")
		}
	}

	header := make([]interface{}, len(t.names))
	for i, name := range t.names {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}

	values := make([]interface{}, len(t.names))
	for i := 0; i < t.nRows; i++ {
		for j, name := range t.names {
			values[j] = t.cols[name][i].Value()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

// XLSXBytes renders the table as an in-memory workbook.
func XLSXBytes(t *Table, sheet string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, t, sheet); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
