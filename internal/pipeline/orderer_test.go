package pipeline

import (
	"reflect"
	"testing"
)

func fkTo(tables ...string) []ForeignKey {
	var fks []ForeignKey
	for _, t := range tables {
		fks = append(fks, ForeignKey{FromColumn: t + "_id", RefTable: t, RefColumn: "id"})
	}
	return fks
}

func TestOrderRespectsForeignKeys(t *testing.T) {
	schema := map[string]*Table{
		"user":     {Name: "user"},
		"project":  {Name: "project"},
		"task":     {Name: "task", ForeignKeys: fkTo("project")},
		"schedule": {Name: "schedule", ForeignKeys: fkTo("project", "task")},
	}
	orderer := NewDependencyOrderer([]string{"user", "project", "option"}, testLogger())

	order := orderer.Order([]string{"schedule", "task", "project", "user"}, schema)

	if len(order) != 4 {
		t.Fatalf("expected 4 tables, got %v", order)
	}
	pos := make(map[string]int)
	for i, table := range order {
		pos[table] = i
	}
	if pos["project"] > pos["task"] {
		t.Errorf("project must precede task: %v", order)
	}
	if pos["task"] > pos["schedule"] {
		t.Errorf("task must precede schedule: %v", order)
	}
	if order[0] != "user" || order[1] != "project" {
		t.Errorf("core tables must come first: %v", order)
	}
}

func TestOrderIsDeterministic(t *testing.T) {
	schema := map[string]*Table{
		"a": {Name: "a"},
		"b": {Name: "b", ForeignKeys: fkTo("a")},
		"c": {Name: "c", ForeignKeys: fkTo("a")},
		"d": {Name: "d"},
	}
	orderer := NewDependencyOrderer(nil, testLogger())
	tables := []string{"a", "b", "c", "d"}

	first := orderer.Order(tables, schema)
	for i := 0; i < 5; i++ {
		if got := orderer.Order(tables, schema); !reflect.DeepEqual(first, got) {
			t.Fatalf("ordering not deterministic: %v vs %v", first, got)
		}
	}
}

func TestOrderCycleFallsBackToDiscoveryOrder(t *testing.T) {
	schema := map[string]*Table{
		"a": {Name: "a", ForeignKeys: fkTo("b")},
		"b": {Name: "b", ForeignKeys: fkTo("a")},
		"c": {Name: "c"},
	}
	orderer := NewDependencyOrderer(nil, testLogger())

	order := orderer.Order([]string{"a", "b", "c"}, schema)

	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestOrderIgnoresExternalAndSelfReferences(t *testing.T) {
	schema := map[string]*Table{
		"node": {Name: "node", ForeignKeys: append(fkTo("node"), fkTo("absent")...)},
	}
	orderer := NewDependencyOrderer(nil, testLogger())

	order := orderer.Order([]string{"node"}, schema)
	if !reflect.DeepEqual(order, []string{"node"}) {
		t.Errorf("self and external references must not block placement: %v", order)
	}
}

func TestOrderCoversTablesMissingFromSchema(t *testing.T) {
	orderer := NewDependencyOrderer(nil, testLogger())

	order := orderer.Order([]string{"ghost"}, map[string]*Table{})
	if !reflect.DeepEqual(order, []string{"ghost"}) {
		t.Errorf("unknown tables must still be placed: %v", order)
	}
}
