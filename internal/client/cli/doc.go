// Package cli provides the interactive cashkeeper command-line client.
//
// It wires configuration, the HTTP API client and a REPL. Tokens live in
// process memory only and are dropped on exit or logout; an access token
// rejected by the server is refreshed once transparently.
//
// Commands:
//   - login / logout
//   - refresh, status
//   - cash: print reconciled balances
//   - hash: print a bcrypt hash for the server's credential registry
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
