// Package main is the entry point for the Snippetbox MCP server.
//
// The Snippetbox server checks and runs short, untrusted Starlark snippets
// from interactive lessons. Every snippet is checked against an allow/deny
// policy before it runs, executes in a fresh namespace holding only
// allow-listed builtins, and is cut off once its time budget expires. The
// server supports both stdio and HTTP transports and can expose Prometheus
// metrics on a separate port.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
