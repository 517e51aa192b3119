// Package exporter persists the star schema and aggregates produced by a run.
//
// Output tables are named dim_<dimension>, fact_sales and agg_<aggregate>.
// Each enabled format is written concurrently:
//
//   - csv: one file per table, optionally with a UTF-8 byte order mark
//   - parquet: converted from the CSV files by an in-memory DuckDB
//   - xlsx: a single workbook with one sheet per table
//   - postgres: tables recreated in a schema and bulk loaded in one transaction
//
// All files are written through files.Manager, which replaces them atomically.
package exporter
