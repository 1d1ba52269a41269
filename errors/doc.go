// Package errors turns ticketflow errors into messages a CLI user can act on.
//
// Wrap maps the domain sentinels (unknown ticket, busy ticket, invalid
// transition, bad token, missing configuration) to a CLIError carrying a
// message and a suggestion, and leaves anything it does not recognize
// untouched. ExitCode picks the process exit status.
//
//	if err := run(); err != nil {
//	    err = errors.Wrap(err)
//	    fmt.Fprintln(os.Stderr, "Error:", err)
//	    os.Exit(errors.ExitCode(err))
//	}
package errors
