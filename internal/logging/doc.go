// Package logging provides file-based logging with rotation for semcode-mcp.
// Logs are written to ~/.semcode-mcp/logs/; the --debug flag raises the
// level from info to debug.
//
// Commands other than serve also copy their log output to stderr. The serve
// command logs to the file only, keeping stdout free for the MCP stdio
// transport.
package logging
