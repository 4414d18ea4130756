package pillar

import (
	"sort"
)

// Registry - the migrations of one keyspace in application order, sorted
// by authoring time. Migrations authored at the same instant keep the
// order they were handed in, which for sets loaded from a directory is
// the lexical file name order.
type Registry struct {
	migrations []*Migration
}

// NewRegistry - builds a registry from the given migrations
func NewRegistry(migrations []*Migration) *Registry {
	sorted := make([]*Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AuthoredAt.Before(sorted[j].AuthoredAt)
	})

	return &Registry{migrations: sorted}
}

// All - returns every migration in application order
func (r *Registry) All() []*Migration {
	if r == nil {
		return nil
	}
	return r.migrations
}

// Len - the number of registered migrations
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.migrations)
}
