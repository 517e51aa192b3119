package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved absolute locations used by a run.
// This is the single source of truth for file paths in the application.
type Paths struct {
	BaseDir   string
	RawDir    string
	OutputDir string
	LogsDir   string
	Manifest  string
}

// ResolvePaths resolves the configured directories against baseDir.
// An empty baseDir means the current working directory.
func ResolvePaths(cfg PathsConfig, baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	logsDir := cfg.LogsDir
	if logsDir == "" {
		logsDir = DefaultLogsDir
	}

	outputDir := resolve(cfg.OutputDir)
	return &Paths{
		BaseDir:   baseDir,
		RawDir:    resolve(cfg.RawDir),
		OutputDir: outputDir,
		LogsDir:   resolve(logsDir),
		Manifest:  filepath.Join(outputDir, "manifest.json"),
	}, nil
}

// EnsureDirectories creates the output and logs directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ValidateRawDir checks that the raw input directory exists
func (p *Paths) ValidateRawDir() error {
	info, err := os.Stat(p.RawDir)
	if err != nil {
		return fmt.Errorf("raw data directory %s: %w", p.RawDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("raw data path %s is not a directory", p.RawDir)
	}
	return nil
}

// GetOutputPath returns the path of a file in the output directory
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// GetLogPath returns the path of a file in the logs directory
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("resolved paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("raw_dir", p.RawDir),
		slog.String("output_dir", p.OutputDir),
		slog.String("logs_dir", p.LogsDir))
}
