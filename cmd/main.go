// Package main provides the entry point for the export migration pipeline.
// The tool reads the schema of a SQLite database, maps an exported JSON data
// tree onto it, and generates an ordered SQL script that preserves
// referential integrity across foreign keys.
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
	"github.com/semaphoretools/export_to_sql_pipeline/internal/pipeline"
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to YAML configuration file")
		mode       = flag.String("mode", "full", "Execution mode: schema, analyze, migrate, verify, full")
		dbPath     = flag.String("db", "", "Source SQLite database path (overrides config)")
		exportRoot = flag.String("export", "", "Export tree root directory (overrides config)")
		outputDir  = flag.String("output", "", "Output directory (overrides config)")
		strict     = flag.Bool("strict", false, "Fail on orphaned entity references instead of dropping them")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override file and environment configuration
	if *dbPath != "" {
		cfg.SQLite.Path = *dbPath
	}
	if *exportRoot != "" {
		cfg.Export.Root = *exportRoot
	}
	if *outputDir != "" {
		cfg.Output.Directory = *outputDir
	}
	if *strict {
		cfg.Migration.StrictReferences = true
	}

	logger := logger.New(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Output)
	logger.Info("Starting export migration pipeline",
		"mode", *mode,
		"config", *configPath,
		"database", cfg.SQLite.Path,
		"export_root", cfg.Export.Root,
		"strict", cfg.Migration.StrictReferences)

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "error", err)
	}
	defer p.Close()

	if err := runPipelineMode(p, cfg, *mode, logger); err != nil {
		logger.Fatal("Pipeline execution failed", "error", err)
	}

	logger.Info("Pipeline completed successfully")
}

// runPipelineMode executes the pipeline operation matching the mode
func runPipelineMode(p *pipeline.Pipeline, cfg *config.Config, mode string, logger *logger.Logger) error {
	ctx := context.Background()

	switch mode {
	case "schema":
		// Extract the schema and write the relationships report
		logger.Info("Running schema extraction")
		return p.WriteRelationshipsReport(ctx)

	case "analyze":
		// Map the export tree without generating output
		logger.Info("Running export analysis")
		return p.AnalyzeExport(ctx)

	case "migrate":
		// Generate the SQL script
		logger.Info("Running migration")
		path, err := p.Generate(ctx)
		if err != nil {
			return err
		}
		logger.Info("SQL script generated", "file", path)
		return nil

	case "verify":
		// Validate a previously generated script
		logger.Info("Running script verification")
		script := filepath.Join(cfg.Output.Directory, cfg.Output.ScriptFile)
		return p.Verify(ctx, script)

	case "full":
		// Report, migrate and verify
		logger.Info("Running complete pipeline")
		return p.RunFull(ctx)

	default:
		logger.Fatal("Invalid pipeline mode", "mode", mode,
			"valid_modes", []string{"schema", "analyze", "migrate", "verify", "full"})
		return nil
	}
}
