package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// Reporter produces the human-readable run summaries: the table relationship
// listing and the files-processed-per-table counts. Reports are advisory and
// never machine-parsed.
type Reporter struct {
	cfg    *config.OutputConfig
	logger *logger.Logger
}

func NewReporter(cfg *config.OutputConfig, logger *logger.Logger) *Reporter {
	return &Reporter{
		cfg:    cfg,
		logger: logger,
	}
}

// WriteRelationships writes the foreign key listing of the schema to the
// configured report file and echoes a summary to the log
func (r *Reporter) WriteRelationships(schema map[string]*Table) (string, error) {
	if err := os.MkdirAll(r.cfg.Directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(r.cfg.Directory, r.cfg.ReportFile)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	fmt.Fprintln(writer, "Database Table Relationships Summary:")
	fmt.Fprintln(writer, "-----------------------------------")

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	relationships := 0
	for _, name := range names {
		table := schema[name]
		if len(table.ForeignKeys) == 0 {
			continue
		}
		fmt.Fprintf(writer, "Table: %s\n", name)
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(writer, "  - %s references %s.%s\n",
				fk.FromColumn, fk.RefTable, fk.RefColumn)
			relationships++
		}
	}
	if relationships == 0 {
		fmt.Fprintln(writer, "No foreign key relationships found.")
	}
	fmt.Fprintln(writer, "-----------------------------------")

	r.logger.Info("Relationships report written",
		"file", path,
		"tables", len(names),
		"relationships", relationships)

	return path, nil
}

// LogRunSummary logs the per-table file counts and the run counters
func (r *Reporter) LogRunSummary(state *State) {
	tables := make([]string, 0, len(state.FilesProcessed))
	for table := range state.FilesProcessed {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		r.logger.Info("Files processed",
			"table", table,
			"files", state.FilesProcessed[table])
	}

	r.logger.Info("Migration summary",
		"records_emitted", state.RecordsEmitted,
		"records_dropped", state.RecordsDropped,
		"duplicates_suppressed", state.Duplicates)
}
