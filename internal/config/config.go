// Package config provides configuration management for the export migration
// pipeline. It supports YAML files, environment variable overrides, and
// provides sensible defaults matching a stock Semaphore export.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	SQLite    SQLiteConfig    `yaml:"sqlite"`    // Source schema database settings
	Export    ExportConfig    `yaml:"export"`    // Export tree settings
	Migration MigrationConfig `yaml:"migration"` // Migration policy settings
	Logger    LoggerConfig    `yaml:"logger"`    // Logging configuration
	Output    OutputConfig    `yaml:"output"`    // Output file configuration
}

// SQLiteConfig contains source database settings. The database is only read
// for its schema; no data is queried from it.
type SQLiteConfig struct {
	Path         string        `yaml:"path"`          // Path to the SQLite database file
	QueryTimeout time.Duration `yaml:"query_timeout"` // Per-query timeout
}

// ExportConfig describes the exported data tree on disk
type ExportConfig struct {
	Root        string            `yaml:"root"`         // Export tree root directory
	ReservedDir string            `yaml:"reserved_dir"` // Directory excluded from mapping (export version history)
	Aliases     map[string]string `yaml:"aliases"`      // Directory name to table name overrides
}

// MigrationConfig contains the migration policy knobs
type MigrationConfig struct {
	ExemptTables       []string `yaml:"exempt_tables"`       // Tables whose ids are preserved verbatim
	CoreTables         []string `yaml:"core_tables"`         // Tables seeded first in the processing order
	IgnoredTables      []string `yaml:"ignored_tables"`      // Tables never emitted even when exported
	EntityTable        string   `yaml:"entity_table"`        // Top-level entity table (id isolation boundary)
	EntityColumn       string   `yaml:"entity_column"`       // Owning-entity column gating dependent records
	ChronologicalTable string   `yaml:"chronological_table"` // Table emitted as one globally sorted block
	TimestampField     string   `yaml:"timestamp_field"`     // Sort field for the chronological table
	StrictReferences   bool     `yaml:"strict_references"`   // Fail on orphaned references instead of dropping
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level  string `yaml:"level"`  // Log level: debug, info, warn, error
	Format string `yaml:"format"` // Log format: json, text
	Output string `yaml:"output"` // Log output: stdout, stderr, file path
}

// OutputConfig contains output file paths
type OutputConfig struct {
	Directory  string `yaml:"directory"`   // Output directory path
	ScriptFile string `yaml:"script_file"` // Generated SQL script file name
	ReportFile string `yaml:"report_file"` // Relationships report file name
}

// DefaultConfig returns a configuration with defaults matching a stock
// Semaphore export layout
func DefaultConfig() *Config {
	return &Config{
		SQLite: SQLiteConfig{
			Path:         "database.sqlite",
			QueryTimeout: 30 * time.Second,
		},
		Export: ExportConfig{
			Root:        "export",
			ReservedDir: "migrations",
			Aliases:     map[string]string{"events": "event"},
		},
		Migration: MigrationConfig{
			ExemptTables:       []string{"project", "user", "task", "project__template"},
			CoreTables:         []string{"user", "project", "option"},
			IgnoredTables:      []string{"session"},
			EntityTable:        "project",
			EntityColumn:       "project_id",
			ChronologicalTable: "event",
			TimestampField:     "created",
			StrictReferences:   false,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Output: OutputConfig{
			Directory:  "output",
			ScriptFile: "migrated_data.sql",
			ReportFile: "relationships.txt",
		},
	}
}

// Load reads configuration from file and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from YAML file if it exists
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	overrideWithEnv(cfg)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// overrideWithEnv applies environment variable overrides to configuration
func overrideWithEnv(cfg *Config) {
	envOverrides := map[string]interface{}{
		"SQLITE_PATH":      &cfg.SQLite.Path,
		"EXPORT_ROOT":      &cfg.Export.Root,
		"OUTPUT_DIR":       &cfg.Output.Directory,
		"OUTPUT_SCRIPT":    &cfg.Output.ScriptFile,
		"LOG_LEVEL":        &cfg.Logger.Level,
		"LOG_FORMAT":       &cfg.Logger.Format,
		"MIGRATION_STRICT": &cfg.Migration.StrictReferences,
	}

	for envVar, target := range envOverrides {
		if value := os.Getenv(envVar); value != "" {
			switch v := target.(type) {
			case *string:
				*v = value
			case *bool:
				if boolVal, err := strconv.ParseBool(value); err == nil {
					*v = boolVal
				}
			}
		}
	}
}

// Validate ensures all required configuration values are present and valid
func (c *Config) Validate() error {
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite database path is required")
	}
	if c.Export.Root == "" {
		return fmt.Errorf("export root directory is required")
	}
	if c.Migration.EntityTable == "" {
		return fmt.Errorf("migration entity table is required")
	}
	if c.Migration.EntityColumn == "" {
		return fmt.Errorf("migration entity column is required")
	}
	if c.Migration.ChronologicalTable != "" && c.Migration.TimestampField == "" {
		return fmt.Errorf("timestamp field is required when a chronological table is set")
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Output.ScriptFile == "" {
		return fmt.Errorf("output script file is required")
	}
	return nil
}

// IsExempt reports whether the table's ids must be preserved verbatim
func (m *MigrationConfig) IsExempt(table string) bool {
	return containsTable(m.ExemptTables, table)
}

// IsIgnored reports whether the table is excluded from emission
func (m *MigrationConfig) IsIgnored(table string) bool {
	return containsTable(m.IgnoredTables, table)
}

func containsTable(tables []string, table string) bool {
	for _, t := range tables {
		if t == table {
			return true
		}
	}
	return false
}
