package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// ErrEmptySchema is returned when the source database yields no tables
var ErrEmptySchema = errors.New("source database contains no tables")

// Table represents one table of the source schema. Columns keep their
// declared order so generated INSERT statements are deterministic.
type Table struct {
	Name          string       `json:"name"`
	Columns       []Column     `json:"columns"`
	ForeignKeys   []ForeignKey `json:"foreign_keys"`
	Indexes       []Index      `json:"indexes"`
	CreateSQL     string       `json:"create_sql"`
	Autoincrement bool         `json:"autoincrement"`
	SurrogateKey  string       `json:"surrogate_key,omitempty"` // pk column paired with AUTOINCREMENT
}

// Column represents a table column
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

// ForeignKey represents a foreign key relationship
type ForeignKey struct {
	FromColumn string `json:"from_column"`
	RefTable   string `json:"referenced_table"`
	RefColumn  string `json:"referenced_column"`
	OnUpdate   string `json:"on_update"`
	OnDelete   string `json:"on_delete"`
}

// Index represents a table index
type Index struct {
	Name string `json:"name"`
	SQL  string `json:"sql,omitempty"`
}

// HasColumn reports whether the table declares a column with the given name
func (t *Table) HasColumn(name string) bool {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return true
		}
	}
	return false
}

// Dependencies returns the distinct tables this table references via
// foreign keys, in declaration order
func (t *Table) Dependencies() []string {
	var deps []string
	seen := make(map[string]struct{})
	for _, fk := range t.ForeignKeys {
		if _, ok := seen[fk.RefTable]; ok {
			continue
		}
		seen[fk.RefTable] = struct{}{}
		deps = append(deps, fk.RefTable)
	}
	return deps
}

// SchemaExtractor reads table structure from the source SQLite database.
// The database is treated as a read-only schema provider.
type SchemaExtractor struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewSchemaExtractor(db *sql.DB, logger *logger.Logger) *SchemaExtractor {
	return &SchemaExtractor{
		db:     db,
		logger: logger,
	}
}

// Extract reads the full schema: per-table columns, foreign keys, indexes
// and autoincrement status. SQLite internal tables are skipped.
func (se *SchemaExtractor) Extract(ctx context.Context) (map[string]*Table, error) {
	tables, err := se.getTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, ErrEmptySchema
	}

	se.logger.Info("Found tables", "count", len(tables))

	schema := make(map[string]*Table, len(tables))
	for _, table := range tables {
		if err := se.fillTable(ctx, table); err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", table.Name, err)
		}
		schema[table.Name] = table
	}

	se.logger.Info("Schema extraction completed",
		"tables", len(schema),
		"autoincrement_tables", countAutoincrement(schema))

	return schema, nil
}

// getTables lists user tables together with their creation SQL. The
// creation SQL carries the AUTOINCREMENT marker SQLite stores nowhere else.
func (se *SchemaExtractor) getTables(ctx context.Context) ([]*Table, error) {
	query := `
		SELECT name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := se.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		table := &Table{}
		if err := rows.Scan(&table.Name, &table.CreateSQL); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// fillTable populates columns, foreign keys, indexes and the autoincrement
// flag for one table
func (se *SchemaExtractor) fillTable(ctx context.Context, table *Table) error {
	columns, err := se.getColumns(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to get columns: %w", err)
	}
	table.Columns = columns

	fks, err := se.getForeignKeys(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to get foreign keys: %w", err)
	}
	table.ForeignKeys = fks

	indexes, err := se.getIndexes(ctx, table.Name)
	if err != nil {
		se.logger.Warn("Failed to get indexes", "table", table.Name, "error", err)
	} else {
		table.Indexes = indexes
	}

	// AUTOINCREMENT only appears in the creation syntax, paired with the
	// column flagged as primary key
	if strings.Contains(strings.ToUpper(table.CreateSQL), "AUTOINCREMENT") {
		for i := range table.Columns {
			if table.Columns[i].PrimaryKey {
				table.Autoincrement = true
				table.SurrogateKey = table.Columns[i].Name
				break
			}
		}
	}

	return nil
}

func (se *SchemaExtractor) getColumns(ctx context.Context, tableName string) ([]Column, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(tableName))

	rows, err := se.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			cid        int
			col        Column
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull != 0
		col.PrimaryKey = pk != 0
		if defaultVal.Valid {
			col.Default = defaultVal.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (se *SchemaExtractor) getForeignKeys(ctx context.Context, tableName string) ([]ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdentifier(tableName))

	rows, err := se.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var (
			id, seq   int
			fk        ForeignKey
			refColumn sql.NullString
			match     string
		)
		err := rows.Scan(&id, &seq, &fk.RefTable, &fk.FromColumn,
			&refColumn, &fk.OnUpdate, &fk.OnDelete, &match)
		if err != nil {
			return nil, err
		}
		// A NULL "to" column means the key references the target's
		// primary key implicitly
		fk.RefColumn = "id"
		if refColumn.Valid && refColumn.String != "" {
			fk.RefColumn = refColumn.String
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (se *SchemaExtractor) getIndexes(ctx context.Context, tableName string) ([]Index, error) {
	query := `
		SELECT name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ?
		ORDER BY name`

	rows, err := se.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Name, &idx.SQL); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// quoteIdentifier wraps a table name for use inside PRAGMA statements,
// which do not accept bound parameters
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func countAutoincrement(schema map[string]*Table) int {
	n := 0
	for _, table := range schema {
		if table.Autoincrement {
			n++
		}
	}
	return n
}
