package files

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader loads raw datasets into tables, coercing cells by the declared schemas
type Reader struct {
	logger    *slog.Logger
	discovery *Discovery
	schemas   map[string]domain.Schema
}

// NewReader creates a reader using the Olist raw schemas
func NewReader(logger *slog.Logger, discovery *Discovery) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if discovery == nil {
		discovery = NewDiscovery("")
	}
	return &Reader{
		logger:    logger,
		discovery: discovery,
		schemas:   domain.RawSchemas,
	}
}

// ReadAll reads every raw dataset found in dir. Missing datasets and
// uncoercible cells are returned as diagnostics.
func (r *Reader) ReadAll(ctx context.Context, dir string) (domain.Tables, []*errors.AppError, error) {
	found, err := r.discovery.FindRawDatasets(dir)
	if err != nil {
		return nil, nil, errors.NewNotFoundError(dir).WithContext("cause", err.Error())
	}

	names := make([]string, 0, len(domain.RawDatasetFiles))
	for name := range domain.RawDatasetFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make(domain.Tables, len(found))
	var diags []*errors.AppError
	for _, dataset := range names {
		file, ok := found[dataset]
		if !ok {
			if domain.OptionalDatasets[dataset] {
				r.logger.DebugContext(ctx, "optional dataset not found", slog.String("dataset", dataset))
				continue
			}
			diags = append(diags, errors.NewMissingInputError(dataset, "extract"))
			r.logger.WarnContext(ctx, "dataset not found", slog.String("dataset", dataset), slog.String("dir", dir))
			continue
		}

		t, fileDiags, err := r.ReadDataset(ctx, dataset, file)
		if err != nil {
			return nil, nil, err
		}
		tables[dataset] = t
		diags = append(diags, fileDiags...)
	}

	r.logger.InfoContext(ctx, "raw datasets extracted",
		slog.Int("dataset_count", len(tables)),
		slog.String("dir", dir))
	return tables, diags, nil
}

// ReadDataset reads one CSV or XLSX file as the named dataset
func (r *Reader) ReadDataset(ctx context.Context, dataset string, file FileInfo) (*domain.Table, []*errors.AppError, error) {
	var (
		records [][]string
		err     error
	)
	switch file.Ext() {
	case ExtCSV:
		records, err = readCSVRecords(file.Path)
	case ExtXLSX:
		records, err = readWorkbookRecords(file.Path)
	default:
		return nil, nil, errors.NewAppValidationError(fmt.Sprintf("unsupported file type %q", file.Name))
	}
	if err != nil {
		return nil, nil, errors.NewStorageError(fmt.Sprintf("failed to read %s", file.Path), err).
			WithContext(errors.ContextTable, dataset)
	}
	if len(records) == 0 {
		return nil, nil, errors.NewAppValidationError(fmt.Sprintf("%s: no header row", file.Path)).
			WithContext(errors.ContextTable, dataset)
	}

	t, diags, err := r.buildTable(dataset, records[0], records[1:])
	if err != nil {
		return nil, nil, err
	}

	r.logger.DebugContext(ctx, "dataset read",
		slog.String("dataset", dataset),
		slog.String("file", file.Name),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumColumns()))
	return t, diags, nil
}

// buildTable coerces raw text rows by the dataset schema. Empty cells are nulls.
func (r *Reader) buildTable(dataset string, header []string, rows [][]string) (*domain.Table, []*errors.AppError, error) {
	schema := r.schemas[dataset]
	cols := make([]*domain.Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		typ, _ := schema.TypeOf(name)
		cols[i] = domain.NullColumn(name, typ, len(rows))
	}

	failures := make([]int, len(cols))
	for rowIdx, row := range rows {
		for c, col := range cols {
			if c >= len(row) {
				continue
			}
			v, ok := coerce(row[c], col.Type)
			if !ok {
				failures[c]++
			}
			col.Values[rowIdx] = v
		}
	}

	var diags []*errors.AppError
	for c, n := range failures {
		if n > 0 {
			diags = append(diags, errors.NewParsingError(
				fmt.Sprintf("%s.%s: %d values not coercible to %s", dataset, cols[c].Name, n, cols[c].Type), nil).
				WithContext(errors.ContextTable, dataset).
				WithContext(errors.ContextColumn, cols[c].Name).
				WithContext(errors.ContextCount, n))
		}
	}

	t, err := domain.NewTable(cols...)
	if err != nil {
		return nil, nil, errors.NewAppValidationError(fmt.Sprintf("%s: %v", dataset, err))
	}
	return t, diags, nil
}

// coerce converts one cell. It reports false when non-empty text could not be
// converted; the value is then null.
func coerce(raw string, typ domain.ColumnType) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, true
	}
	switch typ {
	case domain.TypeInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		// Spreadsheet exports write whole numbers as 123.0
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
		return nil, false
	case domain.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case domain.TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, false
		}
		return b, true
	default:
		return raw, true
	}
}

func readCSVRecords(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// readWorkbookRecords returns the rows of the first sheet
func readWorkbookRecords(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	return f.GetRows(sheets[0])
}
