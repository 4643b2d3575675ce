// Package cli provides the interactive partsdesk session shell.
//
// It wires configuration, the local state database, the session-scoped
// snapshot store and every session component, then runs a REPL over them.
// The shell stands in for the dashboard UI: a draft form takes the place of
// mounted inputs, `goto` moves the current location and notifications are
// printed as they appear.
package cli
