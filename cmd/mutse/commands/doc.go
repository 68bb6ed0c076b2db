// Package commands defines the mutse CLI and wires dependencies for subcommands.
//
// Commands
//
//   - decrypt      Decrypt every .exdf file in a tree to XML and mirror the rest
//   - encrypt      Re-obfuscate an XML file into .exdf form
//   - decompile    Decompile every .NET assembly in a tree with ilspycmd
//   - watch        Keep a decrypted tree in sync with its source
//   - inspect      Describe a single file
//   - verify       Check an output tree against its manifest
//   - version      Print version information
//
// # Implementation
//
// The root command loads configuration (file, then MUTSE_* environment, then
// persistent flags) before any subcommand runs. Each subcommand applies its
// own flags on top and builds the dependency graph with app.NewWire, so
// services see one merged Config and share a single logger.
package commands
