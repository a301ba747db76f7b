// Package service hosts the notepad MCP server and its transports.
//
// The server exposes the notepad tool catalog (read_notes, write_note,
// delete_note) and, when a submission journal is configured, the
// submissions://recent resource. It serves either stdio for local MCP
// clients or HTTP/SSE for remote ones; both transports share the same
// handlers and per-account mutation serialization.
package service
