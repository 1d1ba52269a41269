// Package config resolves ticketflow settings.
//
// Values are merged from, lowest to highest priority:
//
//  1. built-in Defaults
//  2. the global file, ~/.config/ticketflow/config.yaml
//  3. the local file, .ticketflow.yaml at the git root
//  4. TICKETFLOW_* environment variables (TICKETFLOW_DB_PATH for db_path)
//  5. command-line flags
//
// Resolve returns the raw string values with their sources, which the CLI
// shows in "config list". Load turns them into a validated Settings.
//
//	r := config.NewResolver()
//	resolved := r.Resolve(flags)
//	settings, err := config.Load(resolved)
package config
