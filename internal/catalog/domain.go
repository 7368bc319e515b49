// Package catalog exposes the read-only permission catalog: the modules,
// items, and permission kinds that grants may reference. Catalog rows are
// provisioned by deployment and never mutated through this package.
package catalog

// Module is a top-level functional area grouping items.
type Module struct {
	ID           int64
	Name         string
	Icon         string
	DisplayOrder int32
}

// Item is the finest-grained authorizable unit. It belongs to exactly one
// module and never moves to another one.
type Item struct {
	ID           int64
	ModuleID     int64
	Name         string
	DisplayOrder int32
}

// Permission is a named capability that can be granted on an item.
type Permission struct {
	ID   int64
	Name string
}
