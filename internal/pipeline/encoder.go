package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/semaphoretools/export_to_sql_pipeline/internal/config"
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// RecordEncoder converts JSON records into single-line INSERT statements
// using the table's declared column set and order
type RecordEncoder struct {
	cfg    *config.MigrationConfig
	logger *logger.Logger
}

func NewRecordEncoder(cfg *config.MigrationConfig, logger *logger.Logger) *RecordEncoder {
	return &RecordEncoder{
		cfg:    cfg,
		logger: logger,
	}
}

// ExcludeSurrogateID reports whether the record's explicit surrogate key
// must be dropped so the destination assigns a fresh one. That applies to
// autoincrement tables carrying the key, unless the table is exempt because
// its ids are referenced verbatim elsewhere.
func (re *RecordEncoder) ExcludeSurrogateID(table *Table, record map[string]interface{}) bool {
	if !table.Autoincrement || table.SurrogateKey == "" {
		return false
	}
	if re.cfg.IsExempt(table.Name) {
		return false
	}
	_, hasID := record[table.SurrogateKey]
	return hasID
}

// Encode builds an INSERT statement for one record. Columns are filtered to
// those present in both the schema and the record, in schema order. The
// second return is false when no columns remain, meaning the record is
// entirely foreign to this table.
func (re *RecordEncoder) Encode(table *Table, record map[string]interface{}, excludeSurrogateID bool) (string, bool) {
	var columns []string
	var values []string

	for i := range table.Columns {
		name := table.Columns[i].Name
		if excludeSurrogateID && name == table.SurrogateKey {
			continue
		}
		value, ok := record[name]
		if !ok {
			continue
		}
		columns = append(columns, name)
		values = append(values, re.literal(value))
	}

	if len(columns) == 0 {
		return "", false
	}

	statement := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		table.Name,
		strings.Join(columns, ", "),
		strings.Join(values, ", "))
	return statement, true
}

// literal encodes one value as a SQL literal
func (re *RecordEncoder) literal(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case json.Number:
		return v.String()
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%v", v)
	case map[string]interface{}:
		return re.structuredLiteral(v)
	default:
		return quotedLiteral(fmt.Sprintf("%v", v))
	}
}

// structuredLiteral serializes a nested object to compact JSON and encodes
// it as a hex blob, sidestepping quote escaping on embedded structure. A
// serialization failure degrades to a best-effort quoted string.
func (re *RecordEncoder) structuredLiteral(value map[string]interface{}) string {
	data, err := json.Marshal(value)
	if err != nil {
		re.logger.Warn("Failed to serialize nested value, falling back to string", "error", err)
		return quotedLiteral(fmt.Sprintf("%v", value))
	}
	return "X'" + hex.EncodeToString(data) + "'"
}

// quotedLiteral escapes and quotes a string value. Embedded single quotes
// are doubled and newlines become spaces, keeping statements single-line.
func quotedLiteral(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	s = strings.ReplaceAll(s, "\n", " ")
	return "'" + s + "'"
}
