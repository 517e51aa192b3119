package exporter

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Report lists what an export produced
type Report struct {
	Files    []string       `json:"files"`
	Removed  []string       `json:"removed,omitempty"`
	Tables   map[string]int `json:"tables"`
	Formats  []string       `json:"formats"`
	Duration time.Duration  `json:"duration_ns"`
}

// Exporter writes the output tables in every enabled format
type Exporter struct {
	cfg       config.ExportConfig
	files     *files.Manager
	logger    *slog.Logger
	warehouse func(ctx context.Context) (Warehouse, error)
}

// Option configures an Exporter
type Option func(*Exporter)

// WithWarehouse replaces the PostgreSQL connection used for the postgres format
func WithWarehouse(open func(ctx context.Context) (Warehouse, error)) Option {
	return func(e *Exporter) {
		e.warehouse = open
	}
}

// NewExporter creates an exporter writing below the manager's output directory
func NewExporter(cfg config.ExportConfig, manager *files.Manager, logger *slog.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Exporter{
		cfg:    cfg,
		files:  manager,
		logger: logger.With(slog.String("component", "exporter")),
	}
	e.warehouse = func(ctx context.Context) (Warehouse, error) {
		return NewPostgresWriter(ctx, cfg.PostgresDSN, cfg.PostgresSchema, e.logger)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes tables concurrently per format. Parquet files are converted
// from the CSV outputs once those are written.
func (e *Exporter) Export(ctx context.Context, tables domain.Tables) (*Report, error) {
	start := time.Now()
	report := &Report{
		Tables:  make(map[string]int, len(tables)),
		Formats: append([]string(nil), e.cfg.Formats...),
	}
	for name, t := range tables {
		report.Tables[name] = t.NumRows()
	}
	if err := e.files.EnsureDirectory("output/"); err != nil {
		return nil, errors.NewStorageError("failed to create output directory", err)
	}

	var mu sync.Mutex
	addFiles := func(paths ...string) {
		mu.Lock()
		report.Files = append(report.Files, paths...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	if e.cfg.HasFormat(config.FormatCSV) {
		g.Go(func() error {
			csvPaths, err := e.writeCSV(tables)
			if err != nil {
				return err
			}
			addFiles(sortedValues(csvPaths)...)

			if !e.cfg.HasFormat(config.FormatParquet) {
				return nil
			}
			parquetPaths, err := NewParquetWriter(e.logger).Convert(gctx, csvPaths)
			if err != nil {
				return errors.NewStorageError("parquet export failed", err)
			}
			addFiles(sortedValues(parquetPaths)...)
			return nil
		})
	}

	if e.cfg.HasFormat(config.FormatXLSX) {
		g.Go(func() error {
			path, err := NewWorkbookWriter(e.files).Write(e.cfg.WorkbookName, tables)
			if err != nil {
				return errors.NewStorageError("workbook export failed", err)
			}
			addFiles(path)
			return nil
		})
	}

	if e.cfg.HasFormat(config.FormatPostgres) {
		g.Go(func() error {
			wh, err := e.warehouse(gctx)
			if err != nil {
				return errors.NewStorageError("postgres connection failed", err)
			}
			defer wh.Close()
			if err := wh.Load(gctx, tables); err != nil {
				return errors.NewStorageError("postgres load failed", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
		return nil, err
	}

	if e.cfg.HasFormat(config.FormatCSV) {
		removed, err := e.pruneStale(ctx, tables)
		if err != nil {
			return nil, errors.NewStorageError("failed to remove stale outputs", err)
		}
		report.Removed = removed
	}

	sort.Strings(report.Files)
	report.Duration = time.Since(start)
	e.logger.InfoContext(ctx, "export completed",
		slog.Int("table_count", len(tables)),
		slog.Int("file_count", len(report.Files)),
		slog.Any("formats", report.Formats),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (e *Exporter) writeCSV(tables domain.Tables) (map[string]string, error) {
	w := NewCSVWriter(e.files, e.cfg.BOMPrefix)
	paths := make(map[string]string, len(tables))
	for name, t := range tables {
		path, err := w.WriteTable(name, t)
		if err != nil {
			return nil, errors.NewStorageError("csv export failed", err).WithContext(errors.ContextTable, name)
		}
		paths[name] = path
	}
	return paths, nil
}

// pruneStale deletes the csv and parquet files of model tables this run did
// not produce
func (e *Exporter) pruneStale(ctx context.Context, tables domain.Tables) ([]string, error) {
	names, err := e.files.ListFiles("output/")
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".csv" && ext != ".parquet" {
			continue
		}
		table := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := tables[table]; ok || !isModelTable(table) {
			continue
		}
		if err := e.files.DeleteFile("output/" + name); err != nil {
			return removed, err
		}
		path := e.files.Paths().GetOutputPath(name)
		removed = append(removed, path)
		e.logger.InfoContext(ctx, "stale output removed", slog.String("path", path))
	}
	return removed, nil
}

func isModelTable(name string) bool {
	for _, prefix := range []string{"dim_", "fact_", "agg_"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
