// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the snippet engine as MCP tools using the
// mark3labs/mcp-go library:
//
//   - check_snippet: runs the policy check only and reports every violation
//   - run_snippet: checks and runs a snippet and returns the outcome together
//     with its rendered, learner-facing text
//   - describe_policy: lists the allowed and denied names and the time budget
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, engine)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
