package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapIDIsStable(t *testing.T) {
	state := NewState()

	state.MapID("user", json.Number("5"), json.Number("5"))
	state.MapID("user", json.Number("5"), json.Number("99"))

	mapped, ok := state.LookupID("user", json.Number("5"))
	assert.True(t, ok)
	assert.Equal(t, json.Number("5"), mapped)

	// Numeric and string forms of the same id collide
	mapped, ok = state.LookupID("user", "5")
	assert.True(t, ok)
	assert.Equal(t, json.Number("5"), mapped)
}

func TestRewriteForeignKeys(t *testing.T) {
	table := &Table{
		Name: "task",
		ForeignKeys: []ForeignKey{
			{FromColumn: "project_id", RefTable: "project", RefColumn: "id"},
			{FromColumn: "user_id", RefTable: "user", RefColumn: "id"},
		},
	}

	state := NewState()
	state.MapID("project", json.Number("3"), json.Number("7"))

	record := map[string]interface{}{
		"project_id": json.Number("3"),
		"user_id":    json.Number("2"),
		"name":       "deploy",
	}
	state.RewriteForeignKeys(record, table)

	assert.Equal(t, json.Number("7"), record["project_id"])
	// Unmapped values stay as they were
	assert.Equal(t, json.Number("2"), record["user_id"])
	assert.Equal(t, "deploy", record["name"])
}

func TestRewriteForeignKeysSkipsNull(t *testing.T) {
	table := &Table{
		Name:        "task",
		ForeignKeys: []ForeignKey{{FromColumn: "project_id", RefTable: "project", RefColumn: "id"}},
	}

	state := NewState()
	state.MapID("project", json.Number("1"), json.Number("2"))

	record := map[string]interface{}{"project_id": nil}
	state.RewriteForeignKeys(record, table)
	assert.Nil(t, record["project_id"])
}

func TestGateEntity(t *testing.T) {
	state := NewState()
	state.AdmitEntity(json.Number("1"))

	admitted := map[string]interface{}{"project_id": json.Number("1")}
	orphaned := map[string]interface{}{"project_id": json.Number("9")}
	unowned := map[string]interface{}{"name": "global"}

	assert.True(t, state.GateEntity(admitted, "task", "project", "project_id"))
	assert.False(t, state.GateEntity(orphaned, "task", "project", "project_id"))
	assert.True(t, state.GateEntity(unowned, "task", "project", "project_id"))

	// The entity table itself is never gated
	assert.True(t, state.GateEntity(orphaned, "project", "project", "project_id"))
}

func TestMarkEmittedDeduplicates(t *testing.T) {
	state := NewState()
	statement := "INSERT INTO task (name) VALUES ('x');"

	assert.True(t, state.MarkEmitted("task", statement))
	assert.False(t, state.MarkEmitted("task", statement))
	// The ledger is scoped per table
	assert.True(t, state.MarkEmitted("schedule", statement))
}
