// Package store provides SQLite persistence for ticketflow: graph
// checkpoints, ticket records, and per-ticket leases.
//
// All three live in one database opened with Open:
//
//	db, err := store.Open(path)
//	checkpoints := db.Checkpoints()   // checkpoint.Store
//	tickets := db.Tickets()           // ticket.Repository
//	leases := db.Leases()             // per-ticket mutual exclusion
package store
