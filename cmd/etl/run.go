package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/dataprocessing"
	apperrors "github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/exporter"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/infrastructure"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/operations"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract the raw export, build the star schema and aggregates, and export them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd)
			if err != nil {
				return err
			}
			return runETL(cmd, cfg)
		},
	}

	cmd.Flags().String("raw", "", "directory holding the raw Olist CSV/XLSX files")
	cmd.Flags().String("out", "", "directory receiving the transformed outputs")
	cmd.Flags().StringSlice("format", nil, "output formats: csv, xlsx, parquet, postgres (repeatable)")
	return cmd
}

// loadRunConfig loads the configuration and applies command line overrides
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	rawDir, err := cmd.Flags().GetString("raw")
	if err != nil {
		return nil, fmt.Errorf("failed to get raw flag: %w", err)
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return nil, fmt.Errorf("failed to get out flag: %w", err)
	}
	formats, err := cmd.Flags().GetStringSlice("format")
	if err != nil {
		return nil, fmt.Errorf("failed to get format flag: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if rawDir != "" {
		cfg.Paths.RawDir = rawDir
	}
	if outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if len(formats) > 0 {
		cfg.Export.Formats = formats
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("config validation failed", err)
	}
	return cfg, nil
}

func runETL(cmd *cobra.Command, cfg *config.Config) error {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := config.ResolvePaths(cfg.Paths, "")
	if err != nil {
		return err
	}
	paths.LogPathResolution(logger)
	if err := paths.ValidateRawDir(); err != nil {
		logger.Error("raw data directory unavailable", slog.String("error", err.Error()))
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = infrastructure.ContextWithTraceID(ctx)

	telemetry, err := infrastructure.InitializeTelemetry(infrastructure.NewOTelConfig(cfg.Telemetry, os.Stderr), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	manager := files.NewManager(paths)
	manifest := operations.NewRunManifest(infrastructure.GetTraceID(ctx), paths.RawDir, paths.OutputDir, cfg.Export.Formats)
	runner := operations.NewRunner(manifest, logger, operations.NewOperationTracer(telemetry))
	if cfg.Pipeline.StageTimeout > 0 {
		runner.SetStageTimeout(cfg.Pipeline.StageTimeout)
	}

	state, runErr := runner.Execute(ctx,
		operations.NewExtractStage(files.NewReader(logger, files.NewDiscovery(paths.BaseDir)), paths.RawDir),
		operations.NewTransformStage(dataprocessing.NewPipeline(logger, cfg.Pipeline, dataprocessing.WithTelemetry(telemetry))),
		operations.NewExportStage(exporter.NewExporter(cfg.Export, manager, logger)),
	)

	if err := manifest.Save(manager); err != nil {
		logger.Error("failed to save run manifest", slog.String("error", err.Error()))
	}
	if cfg.Telemetry.MetricsFile != "" {
		if err := telemetry.WriteMetricsFile(cfg.Telemetry.MetricsFile); err != nil {
			logger.Warn("failed to write metrics file", slog.String("error", err.Error()))
		}
	}

	if operations.IsOperationError(runErr, operations.ErrorTypeCancellation) {
		logger.Warn("run cancelled before completion", slog.String("operation_id", manifest.ID))
	}

	out := cmd.OutOrStdout()
	printStageSummary(out, manifest)
	if runErr != nil {
		return runErr
	}
	printOutputSummary(out, state.Result.Outputs())
	printDiagnosticSummary(out, manifest.DiagnosticCounts())
	fmt.Fprintln(out, "Manifest:", displayPath(manager, paths.Manifest))
	return nil
}

// displayPath shortens path to one relative to the base directory when it
// lies below it
func displayPath(manager *files.Manager, path string) string {
	rel, err := manager.GetRelativePath(path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
