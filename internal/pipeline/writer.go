package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// ScriptWriter persists the ordered statement sequence as one SQL script
type ScriptWriter struct {
	cfg    *config.OutputConfig
	logger *logger.Logger
}

func NewScriptWriter(cfg *config.OutputConfig, logger *logger.Logger) *ScriptWriter {
	return &ScriptWriter{
		cfg:    cfg,
		logger: logger,
	}
}

// Write joins the statements with newlines and writes them to the configured
// script file, creating the output directory as needed. It returns the path
// of the written script.
func (sw *ScriptWriter) Write(statements []string) (string, error) {
	if err := os.MkdirAll(sw.cfg.Directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(sw.cfg.Directory, sw.cfg.ScriptFile)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create script file %s: %w", path, err)
	}
	defer file.Close()

	writer := bufio.NewWriterSize(file, 1024*1024)
	bytes := 0
	for i, statement := range statements {
		if i > 0 {
			if err := writer.WriteByte('\n'); err != nil {
				return "", fmt.Errorf("failed to write script: %w", err)
			}
			bytes++
		}
		n, err := writer.WriteString(statement)
		if err != nil {
			return "", fmt.Errorf("failed to write script: %w", err)
		}
		bytes += n
	}
	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush script: %w", err)
	}

	sw.logger.Info("SQL script written",
		"file", path,
		"statements", len(statements),
		"bytes", bytes)

	return path, nil
}
