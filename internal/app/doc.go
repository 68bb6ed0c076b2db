// Package app loads configuration and wires application dependencies for the CLI.
//
// Configuration comes from a YAML file (see FindConfigPath) overlaid with
// MUTSE_* environment variables; command-line flags are applied last by the
// caller. NewWire builds the logger-aware services from the final Config and
// exposes them via the Wire struct for commands to use.
package app
