package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// ErrExportRootMissing is returned when the export tree root does not exist
var ErrExportRootMissing = errors.New("export root directory not found")

// dirPattern matches per-entity export directories:
// <table>_<id> or <table>__<relation>_<id>, e.g. "project_5" or
// "project__template_3". The table name is base plus relation.
var dirPattern = regexp.MustCompile(`^([a-z_]+)(__[a-z_]+)?_([0-9]+)$`)

// SourceFile is one discovered JSON file belonging to a table
type SourceFile struct {
	Path     string // Absolute or root-relative file path
	EntityID string // Owning entity id from the directory name, "" when none
	FileID   string // File name without extension
}

// ExportMapper classifies the files of an export tree into per-table lists
// using the directory naming convention
type ExportMapper struct {
	cfg    *config.ExportConfig
	logger *logger.Logger
}

func NewExportMapper(cfg *config.ExportConfig, logger *logger.Logger) *ExportMapper {
	return &ExportMapper{
		cfg:    cfg,
		logger: logger,
	}
}

// Map walks the export tree and returns table name to source file lists.
// Files directly at the root map via their own file name; files inside
// directories map via the directory naming convention or the alias table.
// The reserved directory is the export's own version history and is skipped.
func (em *ExportMapper) Map() (map[string][]SourceFile, error) {
	info, err := os.Stat(em.cfg.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrExportRootMissing, em.cfg.Root)
	}

	mappings := make(map[string][]SourceFile)
	fileCount := 0

	err = filepath.WalkDir(em.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			em.logger.Warn("Failed to read export entry", "path", path, "error", err)
			return nil
		}

		if d.IsDir() {
			if path != em.cfg.Root && d.Name() == em.cfg.ReservedDir {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			return nil
		}

		table, entityID := em.classify(path, d.Name())
		mappings[table] = append(mappings[table], SourceFile{
			Path:     path,
			EntityID: entityID,
			FileID:   strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
		})
		fileCount++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk export tree: %w", err)
	}

	em.logger.Info("Export structure analyzed",
		"root", em.cfg.Root,
		"tables", len(mappings),
		"files", fileCount)

	return mappings, nil
}

// classify derives the table name and owning entity id for one file from
// its immediate parent directory
func (em *ExportMapper) classify(path, fileName string) (table, entityID string) {
	parent := filepath.Dir(path)
	if filepath.Clean(parent) == filepath.Clean(em.cfg.Root) {
		// Root-level files carry the table name themselves
		return strings.TrimSuffix(fileName, filepath.Ext(fileName)), ""
	}

	dirName := filepath.Base(parent)
	if m := dirPattern.FindStringSubmatch(dirName); m != nil {
		return m[1] + m[2], m[3]
	}

	// Non-matching directories map via the alias table, the directory
	// name itself otherwise
	if alias, ok := em.cfg.Aliases[dirName]; ok {
		return alias, ""
	}
	return dirName, ""
}

// ResolveTable determines the actual target table for a file. The immediate
// parent directory may encode a more specific sub-table than the bucket the
// file was mapped under, letting one bucket fan out into several tables.
func ResolveTable(path, defaultTable string) string {
	dirName := filepath.Base(filepath.Dir(path))
	if m := dirPattern.FindStringSubmatch(dirName); m != nil {
		return m[1] + m[2]
	}
	return defaultTable
}
