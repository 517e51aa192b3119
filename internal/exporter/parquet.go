package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ParquetWriter converts exported CSV files to Parquet with an in-memory DuckDB
type ParquetWriter struct {
	logger *slog.Logger
}

// NewParquetWriter creates a parquet writer
func NewParquetWriter(logger *slog.Logger) *ParquetWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetWriter{logger: logger}
}

// Convert writes a .parquet sibling for each CSV path and returns the
// parquet paths keyed like the input.
func (w *ParquetWriter) Convert(ctx context.Context, csvPaths map[string]string) (map[string]string, error) {
	if len(csvPaths) == 0 {
		return map[string]string{}, nil
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	names := make([]string, 0, len(csvPaths))
	for n := range csvPaths {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make(map[string]string, len(csvPaths))
	for _, n := range names {
		src := csvPaths[n]
		dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".parquet"
		if _, err := db.ExecContext(ctx, copyToParquet(src, dst)); err != nil {
			return nil, fmt.Errorf("failed to convert %s to parquet: %w", n, err)
		}
		out[n] = dst
		w.logger.DebugContext(ctx, "parquet written", slog.String("table", n), slog.String("path", dst))
	}
	return out, nil
}

func copyToParquet(src, dst string) string {
	return fmt.Sprintf("COPY (SELECT * FROM read_csv_auto(%s, header = true)) TO %s (FORMAT PARQUET)",
		sqlString(src), sqlString(dst))
}

// sqlString quotes s as a SQL string literal
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
