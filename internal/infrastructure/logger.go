package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
)

var (
	loggerMu sync.Mutex
	// runLogger is the logger installed by the last InitializeLogger call
	runLogger *slog.Logger
	// runLogFile is the log file backing runLogger, if any
	runLogFile *os.File
)

// InitializeLogger builds the logger for a run and installs it as the slog
// default. Calling it again replaces the previous logger and closes its file.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var file *os.File
	var console io.Writer = os.Stdout

	if out := strings.ToLower(cfg.Output); out == "file" || out == "both" {
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		file = f
		if out == "file" {
			console = nil
		}
	}

	logger := newLogger(cfg, console, file)

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if runLogFile != nil {
		runLogFile.Close()
	}
	runLogger, runLogFile = logger, file
	slog.SetDefault(logger)
	return logger, nil
}

// GetLogger returns the run logger, or the slog default before initialization
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if runLogger == nil {
		return slog.Default()
	}
	return runLogger
}

// NewLogger creates a logger writing to the given console writer. File output
// is only opened by InitializeLogger.
func NewLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, error) {
	if console == nil {
		return nil, fmt.Errorf("logger needs a writer")
	}
	return newLogger(cfg, console, nil), nil
}

func newLogger(cfg config.LoggingConfig, console io.Writer, file *os.File) *slog.Logger {
	level := parseLogLevel(cfg.Level)

	var sinks []io.Writer
	if console != nil {
		sinks = append(sinks, console)
	}
	if file != nil {
		sinks = append(sinks, file)
	}
	output := io.MultiWriter(sinks...)

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		// colour only when nothing but the terminal sees the output
		handler = tint.NewHandler(output, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    file != nil || strings.ToLower(cfg.Output) != "console",
		})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			AddSource: level == slog.LevelDebug,
			Level:     level,
		})
	}

	return slog.New(&traceHandler{Handler: handler})
}

// traceHandler stamps every record with the run's trace_id when the context carries one
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// CloseLogFile closes the run's log file if one is open
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if runLogFile == nil {
		return nil
	}
	err := runLogFile.Close()
	runLogFile = nil
	return err
}

// resetLogger drops the run logger; tests only
func resetLogger() {
	CloseLogFile()
	loggerMu.Lock()
	runLogger = nil
	loggerMu.Unlock()
}

func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return nil, fmt.Errorf("log file output requested without a file path")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}
