// Package files reads the raw Olist export and manages files on disk.
//
// Discovery maps the export's file names to dataset names. CSV files are
// preferred over XLSX workbooks with the same stem.
//
// Reader loads each dataset into a domain.Table, coercing cells by the
// dataset's raw schema. Empty cells become nulls. Cells that cannot be
// coerced also become nulls and are counted into a parsing diagnostic.
//
// Manager resolves paths against the run's configured directories and
// writes files atomically through a temporary sibling.
//
// Example usage:
//
//	reader := files.NewReader(logger, files.NewDiscovery(""))
//	raw, diags, err := reader.ReadAll(ctx, "data/raw")
package files
