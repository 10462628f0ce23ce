package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))
}

func testExportConfig(root string) *config.ExportConfig {
	return &config.ExportConfig{
		Root:        root,
		ReservedDir: "migrations",
		Aliases:     map[string]string{"events": "event"},
	}
}

func TestMapExportTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "option.json"))
	writeFile(t, filepath.Join(root, "project_1", "1.json"))
	writeFile(t, filepath.Join(root, "project_1", "2.json"))
	writeFile(t, filepath.Join(root, "project__template_3", "3.json"))
	writeFile(t, filepath.Join(root, "events", "e1.json"))
	writeFile(t, filepath.Join(root, "migrations", "v001.json"))
	writeFile(t, filepath.Join(root, "repository", "r.json"))
	writeFile(t, filepath.Join(root, "project_1", "readme.txt"))

	mapper := NewExportMapper(testExportConfig(root), testLogger())
	mappings, err := mapper.Map()
	require.NoError(t, err)

	assert.Len(t, mappings["option"], 1)
	assert.Equal(t, "", mappings["option"][0].EntityID)
	assert.Equal(t, "option", mappings["option"][0].FileID)

	require.Len(t, mappings["project"], 2)
	assert.Equal(t, "1", mappings["project"][0].EntityID)

	require.Len(t, mappings["project__template"], 1)
	assert.Equal(t, "3", mappings["project__template"][0].EntityID)

	// Alias table maps the directory name, no parent id
	require.Len(t, mappings["event"], 1)
	assert.Equal(t, "", mappings["event"][0].EntityID)

	// Non-matching directories map by their own name
	assert.Len(t, mappings["repository"], 1)

	// The reserved directory and non-JSON files never map
	_, reserved := mappings["migrations"]
	assert.False(t, reserved)
	for _, files := range mappings {
		for _, f := range files {
			assert.Equal(t, ".json", filepath.Ext(f.Path))
		}
	}
}

func TestMapNestedEntityDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "project_1", "task_4", "t.json"))

	mapper := NewExportMapper(testExportConfig(root), testLogger())
	mappings, err := mapper.Map()
	require.NoError(t, err)

	require.Len(t, mappings["task"], 1)
	assert.Equal(t, "4", mappings["task"][0].EntityID)
}

func TestMapMissingRoot(t *testing.T) {
	mapper := NewExportMapper(testExportConfig(filepath.Join(t.TempDir(), "absent")), testLogger())

	_, err := mapper.Map()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExportRootMissing))
}

func TestResolveTable(t *testing.T) {
	tests := []struct {
		path         string
		defaultTable string
		want         string
	}{
		{"export/project_5/p.json", "project", "project"},
		{"export/project__template_3/t.json", "project", "project__template"},
		{"export/events/e.json", "event", "event"},
		{"export/option.json", "option", "option"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveTable(tt.path, tt.defaultTable), tt.path)
	}
}
