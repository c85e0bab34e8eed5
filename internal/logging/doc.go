// Package logging provides opt-in file-based logging with rotation for GrantScout.
// When the --debug flag is set, comprehensive logs are written to ~/.grantscout/logs/
// for debugging and troubleshooting.
//
// In MCP server mode logs go ONLY to the file: stdout carries the JSON-RPC
// stream and must stay clean.
package logging
