package config

// Source indicates where a configuration value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global" // ~/.config/ticketflow/config.yaml
	SourceLocal   Source = "local"  // .ticketflow.yaml in the git root
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)
