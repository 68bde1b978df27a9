package export_test

import (
	"bytes"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/system/export"
	"github.com/xuri/excelize/v2"
)

func TestWrite_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := export.Write(&buf,
		export.SheetSpec{
			Title:  "Users",
			Header: []string{"Name", "Email"},
			Rows:   [][]string{{"Ada Lovelace", "ada@uni.ac.uk"}, {"Alan Turing", "alan@uni.ac.uk"}},
		},
		export.SheetSpec{
			Title:  "Summary",
			Header: []string{"Total"},
			Rows:   [][]string{{"2"}},
		},
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Users" || sheets[1] != "Summary" {
		t.Fatalf("sheets = %v", sheets)
	}
	got, err := f.GetCellValue("Users", "B3")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if got != "alan@uni.ac.uk" {
		t.Errorf("B3 = %q", got)
	}
	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "2" {
		t.Errorf("summary rows = %v", rows)
	}
}

func TestWrite_NoSheets(t *testing.T) {
	var buf bytes.Buffer
	if err := export.Write(&buf); err == nil {
		t.Fatal("expected error for zero sheets")
	}
}
