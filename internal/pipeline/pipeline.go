// Package pipeline provides the core export-to-SQL migration functionality.
// It orchestrates schema extraction, export tree mapping, dependency
// ordering, identifier remapping and SQL generation into one deterministic
// pass over the exported data.
package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// ErrOrphanedReference is returned in strict mode when a record references
// an entity id that was never admitted in this run
var ErrOrphanedReference = errors.New("record references an entity absent from this run")

// Pipeline manages the complete export-to-SQL migration process
type Pipeline struct {
	cfg    *config.Config
	logger *logger.Logger

	db *sql.DB

	extractor *SchemaExtractor
	mapper    *ExportMapper
	orderer   *DependencyOrderer
	encoder   *RecordEncoder
	reporter  *Reporter

	schema map[string]*Table
}

// New creates and initializes a Pipeline. The source database is opened
// read-only; it serves purely as the schema provider.
func New(cfg *config.Config, logger *logger.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := openDatabase(&cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	p.extractor = NewSchemaExtractor(db, logger)
	p.mapper = NewExportMapper(&cfg.Export, logger)
	p.orderer = NewDependencyOrderer(cfg.Migration.CoreTables, logger)
	p.encoder = NewRecordEncoder(&cfg.Migration, logger)
	p.reporter = NewReporter(&cfg.Output, logger)

	return p, nil
}

// openDatabase opens the SQLite schema source read-only
func openDatabase(cfg *config.SQLiteConfig) (*sql.DB, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("database file not accessible: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", cfg.Path))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close releases the database handle
func (p *Pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
}

// ExtractSchema loads the source schema and caches it for the run
func (p *Pipeline) ExtractSchema(ctx context.Context) error {
	schema, err := p.extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("schema extraction failed: %w", err)
	}
	p.schema = schema
	return nil
}

// WriteRelationshipsReport writes the foreign key summary of the schema
func (p *Pipeline) WriteRelationshipsReport(ctx context.Context) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.reporter.WriteRelationships(p.schema)
	return err
}

// AnalyzeExport maps the export tree and logs the per-table file counts
func (p *Pipeline) AnalyzeExport(ctx context.Context) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	mappings, err := p.mapper.Map()
	if err != nil {
		return fmt.Errorf("export analysis failed: %w", err)
	}

	for _, table := range sortedKeys(mappings) {
		_, known := p.schema[table]
		p.logger.Info("Export bucket",
			"table", table,
			"files", len(mappings[table]),
			"in_schema", known)
	}
	return nil
}

// Generate runs the full generation pass and writes the SQL script. It
// returns the path of the written script.
func (p *Pipeline) Generate(ctx context.Context) (string, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return "", err
	}

	mappings, err := p.mapper.Map()
	if err != nil {
		return "", fmt.Errorf("export analysis failed: %w", err)
	}

	statements, state, err := p.buildStatements(mappings)
	if err != nil {
		return "", err
	}

	writer := NewScriptWriter(&p.cfg.Output, p.logger)
	path, err := writer.Write(statements)
	if err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	p.reporter.LogRunSummary(state)
	return path, nil
}

// Verify validates an already generated script against the schema
func (p *Pipeline) Verify(ctx context.Context, scriptPath string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	validator := NewScriptValidator(p.schema, p.logger)
	return validator.Validate(splitLines(string(data)))
}

// RunFull executes generation followed by verification. Verification
// failures abort only in strict mode.
func (p *Pipeline) RunFull(ctx context.Context) error {
	if err := p.WriteRelationshipsReport(ctx); err != nil {
		return err
	}

	path, err := p.Generate(ctx)
	if err != nil {
		return err
	}

	if err := p.Verify(ctx, path); err != nil {
		if p.cfg.Migration.StrictReferences {
			return err
		}
		p.logger.Warn("Script verification reported issues", "error", err)
	}
	return nil
}

func (p *Pipeline) ensureSchema(ctx context.Context) error {
	if p.schema != nil {
		return nil
	}
	return p.ExtractSchema(ctx)
}

// buildStatements produces the complete ordered statement sequence:
// maintenance preamble, per-table inserts in dependency order, and the
// chronological block last
func (p *Pipeline) buildStatements(mappings map[string][]SourceFile) ([]string, *State, error) {
	state := NewState()
	tablesWithData := p.collectTablesWithData(mappings)

	var statements []string
	if len(tablesWithData) > 0 {
		statements = append(statements, p.preamble(tablesWithData)...)
	}

	order := p.orderer.Order(tablesWithData, p.schema)
	p.logger.Info("Processing order determined", "tables", order)

	var chronological []map[string]interface{}
	commented := make(map[string]struct{})

	for _, bucket := range order {
		files, ok := mappings[bucket]
		if !ok {
			continue
		}

		for _, file := range files {
			actual := ResolveTable(file.Path, bucket)
			table, known := p.schema[actual]
			if !known {
				p.logger.Warn("Mapped table absent from schema, dropping records",
					"table", actual, "file", file.Path)
				continue
			}
			if p.cfg.Migration.IsIgnored(actual) {
				continue
			}

			records, err := readRecords(file.Path)
			if err != nil {
				p.logger.Error("Skipping malformed source file",
					"file", file.Path, "error", err)
				continue
			}
			state.FilesProcessed[actual]++

			if actual == p.cfg.Migration.ChronologicalTable {
				chronological = append(chronological, records...)
				continue
			}

			if _, done := commented[actual]; !done {
				statements = append(statements,
					fmt.Sprintf("-- SQL statements for table: %s", actual))
				commented[actual] = struct{}{}
			}

			emitted, err := p.encodeRecords(table, records, state)
			if err != nil {
				return nil, nil, err
			}
			statements = append(statements, emitted...)
		}
	}

	// The chronological table is buffered across every source partition and
	// emitted as one globally ordered block
	if len(chronological) > 0 {
		table, known := p.schema[p.cfg.Migration.ChronologicalTable]
		if known {
			p.sortChronological(chronological)
			statements = append(statements, "",
				fmt.Sprintf("-- SQL statements for table: %s (sorted by %s)",
					table.Name, p.cfg.Migration.TimestampField))

			emitted, err := p.encodeRecords(table, chronological, state)
			if err != nil {
				return nil, nil, err
			}
			statements = append(statements, emitted...)
		}
	}

	return statements, state, nil
}

// collectTablesWithData resolves the actual target table of every discovered
// file and returns, in stable discovery order, the tables that will receive
// at least one record
func (p *Pipeline) collectTablesWithData(mappings map[string][]SourceFile) []string {
	var tables []string
	seen := make(map[string]struct{})

	for _, bucket := range sortedKeys(mappings) {
		for _, file := range mappings[bucket] {
			actual := ResolveTable(file.Path, bucket)
			if _, known := p.schema[actual]; !known {
				continue
			}
			if p.cfg.Migration.IsIgnored(actual) {
				continue
			}
			if _, dup := seen[actual]; dup {
				continue
			}
			seen[actual] = struct{}{}
			tables = append(tables, actual)
		}
	}
	return tables
}

// preamble produces the full-replace maintenance statements: clear every
// table about to receive data and reset its autoincrement counter
func (p *Pipeline) preamble(tables []string) []string {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	statements := []string{
		"-- Clear existing data from tables before migration",
		"-- Reset autoincrement sequences to start from 0",
	}
	for _, table := range sorted {
		statements = append(statements, fmt.Sprintf("DELETE FROM %s;", table))
	}
	statements = append(statements, "", "-- Reset autoincrement sequences")
	for _, table := range sorted {
		statements = append(statements,
			fmt.Sprintf("DELETE FROM sqlite_sequence WHERE name='%s';", table))
	}
	statements = append(statements, "")
	return statements
}

// encodeRecords gates, rewrites and encodes the records of one table,
// deduplicating against the emission ledger
func (p *Pipeline) encodeRecords(table *Table, records []map[string]interface{}, state *State) ([]string, error) {
	entityTable := p.cfg.Migration.EntityTable
	entityColumn := p.cfg.Migration.EntityColumn

	var out []string
	for _, record := range records {
		if len(record) == 0 {
			continue
		}

		if !state.GateEntity(record, table.Name, entityTable, entityColumn) {
			if p.cfg.Migration.StrictReferences {
				return nil, fmt.Errorf("%w: table %s, %s=%v",
					ErrOrphanedReference, table.Name, entityColumn, record[entityColumn])
			}
			p.logger.Warn("Dropping record referencing unknown entity",
				"table", table.Name,
				"column", entityColumn,
				"value", record[entityColumn])
			state.RecordsDropped++
			continue
		}

		excludeID := p.encoder.ExcludeSurrogateID(table, record)

		processed := make(map[string]interface{}, len(record))
		for k, v := range record {
			processed[k] = v
		}
		state.RewriteForeignKeys(processed, table)

		if id, ok := processed["id"]; ok && !excludeID {
			// Preserved ids map to themselves so foreign key rewriting has a
			// uniform lookup path
			state.MapID(table.Name, id, id)
		}
		if table.Name == entityTable {
			if id, ok := processed["id"]; ok {
				state.AdmitEntity(id)
			}
		}

		statement, ok := p.encoder.Encode(table, processed, excludeID)
		if !ok {
			continue
		}
		if !state.MarkEmitted(table.Name, statement) {
			state.Duplicates++
			continue
		}
		state.RecordsEmitted++
		out = append(out, statement)
	}
	return out, nil
}

// sortChronological orders records ascending by the timestamp field;
// records missing the field sort first
func (p *Pipeline) sortChronological(records []map[string]interface{}) {
	field := p.cfg.Migration.TimestampField
	sort.SliceStable(records, func(i, j int) bool {
		return timestampKey(records[i], field) < timestampKey(records[j], field)
	})
}

func timestampKey(record map[string]interface{}, field string) string {
	value, ok := record[field]
	if !ok || value == nil {
		return ""
	}
	return canonicalKey(value)
}

// readRecords parses one export JSON file into a list of records. A file
// holds either a single object or an array of objects; numbers are kept as
// json.Number so numerals survive encoding verbatim.
func readRecords(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var parsed interface{}
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch v := parsed.(type) {
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(v))
		for _, entry := range v {
			if record, ok := entry.(map[string]interface{}); ok {
				records = append(records, record)
			}
		}
		return records, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON shape %T", parsed)
	}
}

func sortedKeys(mappings map[string][]SourceFile) []string {
	keys := make([]string, 0, len(mappings))
	for key := range mappings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
