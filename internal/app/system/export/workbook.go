// Package export renders admin tables as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of a written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetSpec is one worksheet: a header row followed by data rows.
type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

const (
	minWidth = 10
	maxWidth = 50
)

// NewWorkbook builds a workbook with one sheet per spec, in order. Header
// rows are bold and carry an auto-filter.
func NewWorkbook(sheets ...SheetSpec) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("export: no sheets")
	}
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Title); err != nil {
				return nil, fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Title); err != nil {
			return nil, fmt.Errorf("export: new sheet %q: %w", s.Title, err)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, s SheetSpec, headerStyle int) error {
	widths := make([]int, len(s.Header))
	for c, h := range s.Header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(s.Title, cell, h); err != nil {
			return fmt.Errorf("export: set %s: %w", cell, err)
		}
		widths[c] = utf8.RuneCountInString(h) + 2
	}
	for r, row := range s.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(s.Title, cell, v); err != nil {
				return fmt.Errorf("export: set %s: %w", cell, err)
			}
			if c < len(widths) {
				widths[c] = max(widths[c], utf8.RuneCountInString(v))
			}
		}
	}
	if len(s.Header) == 0 {
		return nil
	}

	last, _ := excelize.ColumnNumberToName(len(s.Header))
	_ = f.SetCellStyle(s.Title, "A1", last+"1", headerStyle)
	_ = f.AutoFilter(s.Title, "A1:"+last+"1", nil)
	for c, w := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		_ = f.SetColWidth(s.Title, col, col, float64(min(max(w, minWidth), maxWidth)))
	}
	return nil
}

// Write renders sheets as an .xlsx stream.
func Write(w io.Writer, sheets ...SheetSpec) error {
	f, err := NewWorkbook(sheets...)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
