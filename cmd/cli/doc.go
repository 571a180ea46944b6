// Package cli builds the scadrift root command. It loads the layered
// configuration (embedded defaults, optional file, SCADRIFT_ environment),
// creates the zap logger, and mounts the reconcile subcommand.
package cli
