// Package cli implements the coach command-line interface.
//
// It drives the same core.Service as the HTTP server: entries and results
// imports, the import ledger, and meet bootstrap. Configuration comes from the
// environment (and an optional .env file); logs go to stderr and command
// output to stdout, as text or JSON.
package cli
