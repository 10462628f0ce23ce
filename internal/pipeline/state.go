package pipeline

import (
	"encoding/json"
	"fmt"
)

// State carries the mutable accumulation of one migration run: per-table id
// maps, the set of accepted entity ids, the emission ledger and counters.
// It is threaded explicitly through the pipeline stages so each stage stays
// testable in isolation and a run never leaks into the next.
type State struct {
	idMaps        map[string]map[string]interface{} // table -> source id -> emitted id
	validEntities map[string]struct{}
	ledger        map[string]struct{} // table-qualified statements already emitted

	FilesProcessed map[string]int // actual table -> files read
	RecordsEmitted int
	RecordsDropped int
	Duplicates     int
}

func NewState() *State {
	return &State{
		idMaps:         make(map[string]map[string]interface{}),
		validEntities:  make(map[string]struct{}),
		ledger:         make(map[string]struct{}),
		FilesProcessed: make(map[string]int),
	}
}

// MapID records the emitted id for a source id. Once mapped, an id is stable
// for the rest of the run; remapping attempts are ignored.
func (s *State) MapID(table string, sourceID, emittedID interface{}) {
	key := canonicalKey(sourceID)
	if s.idMaps[table] == nil {
		s.idMaps[table] = make(map[string]interface{})
	}
	if _, exists := s.idMaps[table][key]; exists {
		return
	}
	s.idMaps[table][key] = emittedID
}

// LookupID returns the emitted id recorded for a source id, if any
func (s *State) LookupID(table string, sourceID interface{}) (interface{}, bool) {
	ids, ok := s.idMaps[table]
	if !ok {
		return nil, false
	}
	mapped, ok := ids[canonicalKey(sourceID)]
	return mapped, ok
}

// RewriteForeignKeys replaces foreign key values in the record with their
// mapped counterparts. Values without a recorded mapping are left unchanged,
// covering both self-consistent ids and tables processed without rewriting.
func (s *State) RewriteForeignKeys(record map[string]interface{}, table *Table) {
	for _, fk := range table.ForeignKeys {
		value, ok := record[fk.FromColumn]
		if !ok || value == nil {
			continue
		}
		if mapped, found := s.LookupID(fk.RefTable, value); found {
			record[fk.FromColumn] = mapped
		}
	}
}

// AdmitEntity registers an accepted top-level entity id
func (s *State) AdmitEntity(id interface{}) {
	s.validEntities[canonicalKey(id)] = struct{}{}
}

// EntityAdmitted reports whether the entity id was accepted in this run
func (s *State) EntityAdmitted(id interface{}) bool {
	_, ok := s.validEntities[canonicalKey(id)]
	return ok
}

// GateEntity decides whether a record may be emitted. Records of the entity
// table itself always pass; any other record carrying a non-null owning
// entity id passes only if that id was admitted.
func (s *State) GateEntity(record map[string]interface{}, table, entityTable, entityColumn string) bool {
	if table == entityTable {
		return true
	}
	value, ok := record[entityColumn]
	if !ok || value == nil {
		return true
	}
	return s.EntityAdmitted(value)
}

// MarkEmitted records a statement in the emission ledger. It returns false
// when an identical statement for the same table was already emitted.
func (s *State) MarkEmitted(table, statement string) bool {
	key := table + ":" + statement
	if _, seen := s.ledger[key]; seen {
		return false
	}
	s.ledger[key] = struct{}{}
	return true
}

// canonicalKey normalizes an id value to a map key. Export JSON carries ids
// as numbers or strings; both forms of the same id must collide.
func canonicalKey(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
