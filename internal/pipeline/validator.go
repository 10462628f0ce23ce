package pipeline

import (
	"fmt"
	"strings"

	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// ScriptValidator verifies a generated script against the source schema:
// every INSERT must target a known table, referenced tables must be inserted
// before their dependents, and no statement may repeat within a table.
type ScriptValidator struct {
	schema map[string]*Table
	logger *logger.Logger
}

// ValidationResult represents the outcome of one validation check
type ValidationResult struct {
	CheckName   string
	Passed      bool
	Description string
}

// ValidationSummary aggregates the validation results
type ValidationSummary struct {
	TotalChecks  int
	PassedChecks int
	FailedChecks int
	Results      []ValidationResult
}

func NewScriptValidator(schema map[string]*Table, logger *logger.Logger) *ScriptValidator {
	return &ScriptValidator{
		schema: schema,
		logger: logger,
	}
}

// Validate runs all checks over the statement sequence and returns an error
// when any check fails. Comments and blank lines are ignored.
func (sv *ScriptValidator) Validate(statements []string) error {
	summary := &ValidationSummary{}

	inserts := sv.collectInserts(statements)

	sv.checkKnownTables(inserts, summary)
	sv.checkDependencyOrder(inserts, summary)
	sv.checkDuplicates(inserts, summary)

	sv.printSummary(summary)

	if summary.FailedChecks > 0 {
		return fmt.Errorf("script validation failed: %d/%d checks failed",
			summary.FailedChecks, summary.TotalChecks)
	}
	return nil
}

// insertStatement is one parsed INSERT with its position in the script
type insertStatement struct {
	Table     string
	Statement string
	Position  int
}

func (sv *ScriptValidator) collectInserts(statements []string) []insertStatement {
	var inserts []insertStatement
	for i, statement := range statements {
		trimmed := strings.TrimSpace(statement)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if !strings.HasPrefix(trimmed, "INSERT INTO ") {
			continue
		}
		rest := strings.TrimPrefix(trimmed, "INSERT INTO ")
		end := strings.IndexAny(rest, " (")
		if end <= 0 {
			continue
		}
		inserts = append(inserts, insertStatement{
			Table:     rest[:end],
			Statement: trimmed,
			Position:  i,
		})
	}
	return inserts
}

func (sv *ScriptValidator) checkKnownTables(inserts []insertStatement, summary *ValidationSummary) {
	unknown := make(map[string]struct{})
	for _, ins := range inserts {
		if _, ok := sv.schema[ins.Table]; !ok {
			unknown[ins.Table] = struct{}{}
		}
	}

	result := ValidationResult{
		CheckName:   "Insert targets",
		Passed:      len(unknown) == 0,
		Description: fmt.Sprintf("%d INSERT statements over %d schema tables", len(inserts), len(sv.schema)),
	}
	if len(unknown) > 0 {
		for table := range unknown {
			sv.logger.Error("INSERT targets a table absent from the schema", "table", table)
		}
	}
	summary.add(result)
}

// checkDependencyOrder verifies that for every foreign key whose tables both
// appear in the script, the referenced table's first INSERT precedes the
// referencing table's first INSERT
func (sv *ScriptValidator) checkDependencyOrder(inserts []insertStatement, summary *ValidationSummary) {
	firstInsert := make(map[string]int)
	for _, ins := range inserts {
		if _, seen := firstInsert[ins.Table]; !seen {
			firstInsert[ins.Table] = ins.Position
		}
	}

	violations := 0
	for table, pos := range firstInsert {
		schemaTable, ok := sv.schema[table]
		if !ok {
			continue
		}
		for _, fk := range schemaTable.ForeignKeys {
			if fk.RefTable == table {
				continue
			}
			refPos, present := firstInsert[fk.RefTable]
			if !present {
				continue
			}
			if refPos > pos {
				violations++
				sv.logger.Error("Dependency order violated",
					"table", table,
					"references", fk.RefTable,
					"column", fk.FromColumn)
			}
		}
	}

	summary.add(ValidationResult{
		CheckName:   "Dependency order",
		Passed:      violations == 0,
		Description: fmt.Sprintf("%d ordering violations", violations),
	})
}

func (sv *ScriptValidator) checkDuplicates(inserts []insertStatement, summary *ValidationSummary) {
	seen := make(map[string]struct{}, len(inserts))
	duplicates := 0
	for _, ins := range inserts {
		key := ins.Table + ":" + ins.Statement
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}

	summary.add(ValidationResult{
		CheckName:   "Statement uniqueness",
		Passed:      duplicates == 0,
		Description: fmt.Sprintf("%d duplicate statements", duplicates),
	})
}

func (sv *ScriptValidator) printSummary(summary *ValidationSummary) {
	for _, result := range summary.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		if result.Passed {
			sv.logger.Info("Validation check",
				"status", status, "check", result.CheckName, "detail", result.Description)
		} else {
			sv.logger.Error("Validation check",
				"status", status, "check", result.CheckName, "detail", result.Description)
		}
	}

	sv.logger.Info("Validation results",
		"total_checks", summary.TotalChecks,
		"passed", summary.PassedChecks,
		"failed", summary.FailedChecks)
}

func (vs *ValidationSummary) add(result ValidationResult) {
	vs.Results = append(vs.Results, result)
	vs.TotalChecks++
	if result.Passed {
		vs.PassedChecks++
	} else {
		vs.FailedChecks++
	}
}
