// Package discovery catalogs filter modules available on the filesystem.
//
// A Scanner walks configured plugin directories for shared objects and their
// optional sidecar manifests; a Watcher reports modules appearing and
// disappearing at runtime. Discovery never loads a module: loading is a
// per-filter-instance decision made through pkg/filter.
package discovery
