// Package integrationtest runs whole tickets through the coordinator with a
// real git repository, the SQLite store, and command agents.
package integrationtest
