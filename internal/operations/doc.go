// Package operations orchestrates an ETL run as a sequence of stages.
//
// A run has three stages: extract reads the raw Olist export, transform runs
// the clean, model and aggregate pipeline, and export writes the outputs.
// The Runner executes them in order against a shared RunState, wraps each in
// a span and a deadline, and records every execution in a RunManifest. The
// first failing stage stops the run and the remaining ones are recorded as
// skipped.
//
// The manifest is saved as JSON next to the outputs:
//
//	manifest := operations.NewRunManifest(traceID, paths.RawDir, paths.OutputDir, cfg.Export.Formats)
//	runner := operations.NewRunner(manifest, logger, operations.NewOperationTracer(telemetry))
//	state, err := runner.Execute(ctx, extract, transform, export)
//	_ = manifest.Save(fileManager)
package operations
