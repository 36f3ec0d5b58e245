package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the sheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet of a workbook into a table; the first row is the
// header.
func ReadXLSX(name, path string, opts XLSXOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: sheet %q is empty", sheet.Name)
	}

	header := rowToStrings(sheet.Rows[0])
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowToStrings(row))
	}
	return NewTable(name, header, rows), nil
}

// WriteXLSX saves t as a single-sheet workbook. The sheet is named after the
// table.
func WriteXLSX(t *Table, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(t.Name)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %s", t.Name)
	}

	header := sheet.AddRow()
	for _, col := range t.Columns {
		header.AddCell().SetString(col)
	}
	for _, r := range t.Rows {
		addRow(sheet, r)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// WriteCSV writes t, header first, as UTF-8 CSV.
func WriteCSV(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// ConvertXLSXToCSV reads the first sheet of src and writes it to dst as CSV.
// It returns the number of data rows written.
func ConvertXLSXToCSV(src, dst string) (int, error) {
	t, err := ReadXLSX(src, src, XLSXOptions{})
	if err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrapf(err, "convert: create %s", dst)
	}
	if err := WriteCSV(t, out); err != nil {
		out.Close() //nolint:errcheck
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, eris.Wrapf(err, "convert: close %s", dst)
	}
	return t.Len(), nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// plainGeneral reports whether the General number format shows f without
// switching to scientific notation.
func plainGeneral(f float64) bool {
	a := math.Abs(f)
	return a == 0 || (a >= 1e-9 && a < 1e11)
}

// addRow writes numbers as numeric cells and everything else as text. A
// value is numeric only when it is already in canonical form, so keys such
// as "007" keep their leading zeros.
func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		if f, ok := ParseNumber(v); ok && strconv.FormatFloat(f, 'f', -1, 64) == v && plainGeneral(f) {
			cell.SetFloat(f)
			continue
		}
		cell.SetString(v)
	}
}
