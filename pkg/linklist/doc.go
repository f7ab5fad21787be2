// Package linklist provides the shared vocabulary for the linkboard sync
// engine: the list and item data model, the canonical ordering rules, the
// error taxonomy used across components, and validation for bulk-import
// records.
//
// The package is deliberately free of I/O. Every component of the engine
// (store, mutator, reorder reconciler, realtime coordinator, importer)
// speaks these types, so invariants that span components (pinned-first
// ordering, position renumbering, active/archived exclusivity) live here.
package linklist
