package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	files *files.Manager
	bom   bool
}

// NewCSVWriter creates a new CSV writer instance. With bom set every file
// starts with a UTF-8 byte order mark so Excel detects the encoding.
func NewCSVWriter(manager *files.Manager, bom bool) *CSVWriter {
	return &CSVWriter{files: manager, bom: bom}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool
}

// WriteTable writes t to output/<name>.csv and returns the file's full path
func (w *CSVWriter) WriteTable(name string, t *domain.Table) (string, error) {
	records := make([][]string, t.NumRows())
	cols := t.Columns()
	for i := range records {
		record := make([]string, len(cols))
		for c, col := range cols {
			record[c] = formatCell(col.Values[i])
		}
		records[i] = record
	}

	path := "output/" + name + ".csv"
	err := w.WriteCSV(path, WriteOptions{
		Headers:   t.ColumnNames(),
		Records:   records,
		BOMPrefix: w.bom,
	})
	if err != nil {
		return "", err
	}
	return w.files.Paths().GetOutputPath(name + ".csv"), nil
}

// WriteCSV writes data to a CSV file with the given options. The file is
// replaced atomically.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	slog.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	return w.files.WriteStream(filePath, func(out io.Writer) error {
		if options.BOMPrefix {
			if _, err := out.Write(utf8BOM); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}

		writer := csv.NewWriter(out)
		if len(options.Headers) > 0 {
			if err := writer.Write(options.Headers); err != nil {
				return fmt.Errorf("failed to write headers: %w", err)
			}
		}
		for i, record := range options.Records {
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
		writer.Flush()
		return writer.Error()
	})
}
