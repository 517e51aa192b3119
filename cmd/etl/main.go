package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
)

type exitCode int

const (
	exitCodeSuccess exitCode = 0
	exitCodeError   exitCode = 1
	exitCodeConfig  exitCode = 2
)

func main() {
	os.Exit(int(run(os.Args[1:])))
}

func run(args []string) exitCode {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeConfig) {
			return exitCodeConfig
		}
		return exitCodeError
	}
	return exitCodeSuccess
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "etl",
		Short:        "Olist e-commerce ETL: raw exports to a Power BI star schema.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file (default: etl.yaml or configs/etl.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		newRunCmd(),
		newSchemaCmd(),
		newStatusCmd(),
	)
	return rootCmd
}
