// Package checkpoint defines durable progress snapshots for graphs.
//
// A checkpoint is keyed by (ticket, graph, checkpoint id). Stores upsert on
// that key, so at most one active row exists per triple, and "latest" means
// the most recently written active row for a (ticket, graph) pair.
//
// Graph states are typed (PlanningState, ImplementationState, ReviewState)
// and carry everything a later Resume needs; nothing is re-derived from the
// in-memory context of the run that wrote them.
//
// MemoryStore is provided here; the SQLite implementation lives in package store.
package checkpoint
