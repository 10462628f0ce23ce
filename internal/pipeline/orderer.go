package pipeline

import (
	"github.com/semaphoretools/export_to_sql_pipeline/pkg/logger"
)

// DependencyOrderer computes a processing order over tables such that every
// table is placed after the tables it references via foreign key, as far as
// the dependency graph allows
type DependencyOrderer struct {
	core   []string // Identity/ownership tables seeded first when present
	logger *logger.Logger
}

func NewDependencyOrderer(core []string, logger *logger.Logger) *DependencyOrderer {
	return &DependencyOrderer{
		core:   core,
		logger: logger,
	}
}

// Order returns a deterministic, total ordering of the given tables. Core
// tables come first, then repeated passes admit any table whose in-run
// dependencies are already placed. Tables still unplaced at the fixed point
// (a dependency cycle, or references to tables outside this run's schema)
// are appended in their discovery order rather than aborting the run.
func (do *DependencyOrderer) Order(tables []string, schema map[string]*Table) []string {
	present := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		present[t] = struct{}{}
	}

	order := make([]string, 0, len(tables))
	placed := make(map[string]struct{}, len(tables))

	for _, t := range do.core {
		if _, ok := present[t]; ok {
			order = append(order, t)
			placed[t] = struct{}{}
		}
	}

	for len(placed) < len(tables) {
		admitted := false
		for _, t := range tables {
			if _, done := placed[t]; done {
				continue
			}
			if do.dependenciesPlaced(t, schema, present, placed) {
				order = append(order, t)
				placed[t] = struct{}{}
				admitted = true
			}
		}
		if !admitted {
			break
		}
	}

	// Remaining tables form a cycle or depend on something unknown;
	// degrade to discovery order instead of failing
	var unresolved []string
	for _, t := range tables {
		if _, done := placed[t]; !done {
			order = append(order, t)
			placed[t] = struct{}{}
			unresolved = append(unresolved, t)
		}
	}
	if len(unresolved) > 0 {
		do.logger.Warn("Tables could not be dependency-ordered, possible schema cycle",
			"tables", unresolved)
	}

	return order
}

// dependenciesPlaced reports whether every table t references, restricted to
// tables present in this run, has already been placed
func (do *DependencyOrderer) dependenciesPlaced(t string, schema map[string]*Table, present, placed map[string]struct{}) bool {
	table, ok := schema[t]
	if !ok {
		return true
	}
	for _, dep := range table.Dependencies() {
		if dep == t {
			continue // self-references never block placement
		}
		if _, inRun := present[dep]; !inRun {
			continue
		}
		if _, done := placed[dep]; !done {
			return false
		}
	}
	return true
}
