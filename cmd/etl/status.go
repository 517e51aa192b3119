package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/infrastructure"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/operations"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stages and diagnostics of the last run from its manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, manifestPath, err := loadStatusConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			manifest, err := operations.LoadManifestFromFile(manifestPath)
			if err != nil {
				return err
			}
			logger.Debug("manifest loaded",
				slog.String("path", manifestPath),
				slog.String("operation_id", manifest.ID),
				slog.Int("stage_count", len(manifest.Stages)))

			out := cmd.OutOrStdout()
			printStageSummary(out, manifest)
			fmt.Fprintln(out, "Status:", manifest.Status)
			printDiagnosticSummary(out, manifest.DiagnosticCounts())

			if !manifest.IsStageCompleted(operations.StageIDExport) {
				return fmt.Errorf("run %s did not complete the %s stage", manifest.ID, operations.StageIDExport)
			}
			return nil
		},
	}

	cmd.Flags().String("out", "", "output directory of the run to inspect")
	return cmd
}

// loadStatusConfig loads the configuration and locates manifest.json in the
// configured output directory
func loadStatusConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get config flag: %w", err)
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get verbose flag: %w", err)
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get out flag: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, "", err
	}
	if outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	paths, err := config.ResolvePaths(cfg.Paths, "")
	if err != nil {
		return nil, "", err
	}
	return cfg, paths.Manifest, nil
}
