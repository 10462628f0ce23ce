package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validatorSchema() map[string]*Table {
	return map[string]*Table{
		"project": {Name: "project"},
		"task":    {Name: "task", ForeignKeys: fkTo("project")},
	}
}

func TestValidateAcceptsOrderedScript(t *testing.T) {
	v := NewScriptValidator(validatorSchema(), testLogger())

	err := v.Validate([]string{
		"-- Clear existing data from tables before migration",
		"DELETE FROM project;",
		"",
		"INSERT INTO project (id, name) VALUES (1, 'Alpha');",
		"INSERT INTO task (project_id) VALUES (1);",
	})
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownTable(t *testing.T) {
	v := NewScriptValidator(validatorSchema(), testLogger())

	err := v.Validate([]string{
		"INSERT INTO ghost (id) VALUES (1);",
	})
	require.Error(t, err)
}

func TestValidateRejectsDependencyViolation(t *testing.T) {
	v := NewScriptValidator(validatorSchema(), testLogger())

	err := v.Validate([]string{
		"INSERT INTO task (project_id) VALUES (1);",
		"INSERT INTO project (id, name) VALUES (1, 'Alpha');",
	})
	require.Error(t, err)
}

func TestValidateRejectsDuplicates(t *testing.T) {
	v := NewScriptValidator(validatorSchema(), testLogger())

	err := v.Validate([]string{
		"INSERT INTO project (id, name) VALUES (1, 'Alpha');",
		"INSERT INTO project (id, name) VALUES (1, 'Alpha');",
	})
	require.Error(t, err)
}

func TestValidateIgnoresReferencedTablesOutsideScript(t *testing.T) {
	v := NewScriptValidator(validatorSchema(), testLogger())

	// No project inserts at all: nothing to order against
	err := v.Validate([]string{
		"INSERT INTO task (project_id) VALUES (1);",
	})
	assert.NoError(t, err)
}
