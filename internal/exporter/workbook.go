package exporter

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// maxSheetName is the sheet name length limit of the xlsx format
const maxSheetName = 31

// WorkbookWriter writes every output table as one sheet of a single workbook
type WorkbookWriter struct {
	files *files.Manager
}

// NewWorkbookWriter creates a workbook writer
func NewWorkbookWriter(manager *files.Manager) *WorkbookWriter {
	return &WorkbookWriter{files: manager}
}

// Write stores tables in output/<name>, one sheet per table in name order,
// and returns the workbook's full path.
func (w *WorkbookWriter) Write(name string, tables domain.Tables) (string, error) {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)

	f := excelize.NewFile()
	defer f.Close()
	defaultSheet := f.GetSheetName(0)

	for i, n := range names {
		sheet := sheetName(n)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return "", err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("failed to add sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, tables[n]); err != nil {
			return "", fmt.Errorf("failed to write sheet %s: %w", sheet, err)
		}
	}

	err := w.files.WriteStream("output/"+name, func(out io.Writer) error {
		_, err := f.WriteTo(out)
		return err
	})
	if err != nil {
		return "", err
	}
	return w.files.Paths().GetOutputPath(name), nil
}

func writeSheet(f *excelize.File, sheet string, t *domain.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]any, 0, t.NumColumns())
	for _, n := range t.ColumnNames() {
		header = append(header, n)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	cols := t.Columns()
	for i := 0; i < t.NumRows(); i++ {
		row := make([]any, len(cols))
		for c, col := range cols {
			row[c] = col.Values[i]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
