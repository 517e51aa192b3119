package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Warehouse loads output tables into a database
type Warehouse interface {
	Load(ctx context.Context, tables domain.Tables) error
	Close()
}

// PostgresWriter replaces the output tables of a PostgreSQL schema
type PostgresWriter struct {
	pool   *pgxpool.Pool
	schema string
	logger *slog.Logger
}

// NewPostgresWriter connects a pool to dsn and verifies the connection
func NewPostgresWriter(ctx context.Context, dsn, schema string, logger *slog.Logger) (*PostgresWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresWriter{pool: pool, schema: schema, logger: logger}, nil
}

// Load recreates every table in one transaction and bulk copies its rows.
// Readers see either the previous load or the complete new one.
func (w *PostgresWriter) Load(ctx context.Context, tables domain.Tables) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{w.schema}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", w.schema, err)
	}

	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		t := tables[name]
		for _, stmt := range TableDDL(w.schema, name, t) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table %s: %w", name, err)
			}
		}
		if t.NumRows() == 0 || t.NumColumns() == 0 {
			continue
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{w.schema, name}, t.ColumnNames(), pgx.CopyFromSlice(t.NumRows(), rowValues(t)))
		if err != nil {
			return fmt.Errorf("failed to copy rows into %s: %w", name, err)
		}
		w.logger.DebugContext(ctx, "table loaded", slog.String("table", name), slog.Int64("rows", n))
	}

	return tx.Commit(ctx)
}

// Close releases the pool
func (w *PostgresWriter) Close() {
	w.pool.Close()
}

// TableDDL returns the statements that replace schema.name with columns typed after t
func TableDDL(schema, name string, t *domain.Table) []string {
	ident := pgx.Identifier{schema, name}.Sanitize()

	defs := make([]string, 0, t.NumColumns())
	for _, col := range t.Columns() {
		defs = append(defs, pgx.Identifier{col.Name}.Sanitize()+" "+postgresType(col.Type))
	}

	return []string{
		"DROP TABLE IF EXISTS " + ident,
		fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(defs, ", ")),
	}
}

func postgresType(t domain.ColumnType) string {
	switch t {
	case domain.TypeInt:
		return "BIGINT"
	case domain.TypeFloat:
		return "DOUBLE PRECISION"
	case domain.TypeBool:
		return "BOOLEAN"
	case domain.TypeTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func rowValues(t *domain.Table) func(i int) ([]any, error) {
	cols := t.Columns()
	return func(i int) ([]any, error) {
		row := make([]any, len(cols))
		for c, col := range cols {
			row[c] = col.Values[i]
		}
		return row, nil
	}
}
