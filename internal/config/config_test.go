package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "database.sqlite", cfg.SQLite.Path)
	assert.Equal(t, "export", cfg.Export.Root)
	assert.Equal(t, "migrations", cfg.Export.ReservedDir)
	assert.Equal(t, "event", cfg.Export.Aliases["events"])
	assert.Equal(t, "project", cfg.Migration.EntityTable)
	assert.Equal(t, "project_id", cfg.Migration.EntityColumn)
	assert.Equal(t, "event", cfg.Migration.ChronologicalTable)
	assert.Equal(t, "created", cfg.Migration.TimestampField)
	assert.False(t, cfg.Migration.StrictReferences)
	assert.Contains(t, cfg.Migration.ExemptTables, "project__template")
	assert.Contains(t, cfg.Migration.IgnoredTables, "session")
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sqlite:
  path: /data/source.sqlite
export:
  root: /data/export
migration:
  strict_references: true
output:
  directory: /data/out
  script_file: out.sql
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/source.sqlite", cfg.SQLite.Path)
	assert.Equal(t, "/data/export", cfg.Export.Root)
	assert.True(t, cfg.Migration.StrictReferences)
	assert.Equal(t, "out.sql", cfg.Output.ScriptFile)
	// Untouched sections keep their defaults
	assert.Equal(t, "project", cfg.Migration.EntityTable)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SQLITE_PATH", "/env/db.sqlite")
	t.Setenv("MIGRATION_STRICT", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/db.sqlite", cfg.SQLite.Path)
	assert.True(t, cfg.Migration.StrictReferences)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing db path", func(c *Config) { c.SQLite.Path = "" }, false},
		{"missing export root", func(c *Config) { c.Export.Root = "" }, false},
		{"missing entity table", func(c *Config) { c.Migration.EntityTable = "" }, false},
		{"missing entity column", func(c *Config) { c.Migration.EntityColumn = "" }, false},
		{"chronological without timestamp", func(c *Config) { c.Migration.TimestampField = "" }, false},
		{"no chronological table at all", func(c *Config) {
			c.Migration.ChronologicalTable = ""
			c.Migration.TimestampField = ""
		}, true},
		{"missing output dir", func(c *Config) { c.Output.Directory = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTableLists(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Migration.IsExempt("user"))
	assert.False(t, cfg.Migration.IsExempt("access_token"))
	assert.True(t, cfg.Migration.IsIgnored("session"))
	assert.False(t, cfg.Migration.IsIgnored("task"))
}
